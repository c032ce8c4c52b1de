// Package secrets keeps small per-user values, such as the Web API key,
// outside the plain preferences file.
package secrets

import "errors"

var ErrNotFound = errors.New("secret not found")

type Store interface {
	Put(name, value string) error
	Get(name string) (string, error)
	Delete(name string) error
}
