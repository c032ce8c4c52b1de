//go:build !windows

package process

import (
	"reflect"
	"testing"
)

func TestLaunchCommandElevatedUsesPkexec(t *testing.T) {
	cmd := launchCommand("/home/u/.steam/steam/steam.sh", []string{"-silent"}, true)
	want := []string{"pkexec", "/home/u/.steam/steam/steam.sh", "-silent"}
	if !reflect.DeepEqual(cmd.Args, want) {
		t.Fatalf("unexpected args: %v", cmd.Args)
	}

	cmd = launchCommand("/home/u/.steam/steam/steam.sh", nil, false)
	if len(cmd.Args) != 1 || cmd.Args[0] != "/home/u/.steam/steam/steam.sh" {
		t.Fatalf("unexpected args: %v", cmd.Args)
	}
}
