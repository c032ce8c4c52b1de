package vdftext

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func buildLoginUsers(personas []string) (string, []string) {
	var b strings.Builder
	ids := make([]string, len(personas))
	b.WriteString("\"users\"\n{\n")
	for i, persona := range personas {
		ids[i] = strconv.FormatUint(76561198000000000+uint64(i), 10)
		fmt.Fprintf(&b, "\t%q\n\t{\n", ids[i])
		fmt.Fprintf(&b, "\t\t\"AccountName\"\t\t\"acct%d\"\n", i)
		fmt.Fprintf(&b, "\t\t\"PersonaName\"\t\t%q\n", persona)
		b.WriteString("\t}\n")
	}
	b.WriteString("}\n")
	return b.String(), ids
}

func TestPropertyParseReturnsOneEntryPerBlock(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("N numeric blocks parse to N entries without leakage", prop.ForAll(
		func(personas []string) bool {
			text, ids := buildLoginUsers(personas)
			got := ParseLoginEntries(text)
			if len(got) != len(ids) {
				return false
			}
			for i, id := range ids {
				fields, ok := got[id]
				if !ok || len(fields) != 2 {
					return false
				}
				if fields["accountname"] != fmt.Sprintf("acct%d", i) || fields["personaname"] != personas[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

func TestPropertyRemoveAccountEntry(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("removed id never parses back", prop.ForAll(
		func(personas []string, pick int) bool {
			text, ids := buildLoginUsers(personas)
			target := strconv.FormatUint(76561198000000000+uint64(pick), 10)
			out, removed := RemoveAccountEntry(text, target)
			exists := pick < len(ids)
			if removed != exists {
				return false
			}
			if !exists {
				return out == text
			}
			got := ParseLoginEntries(out)
			_, stillThere := got[target]
			return !stillThere && len(got) == len(ids)-1
		},
		gen.SliceOf(gen.AlphaString()),
		gen.IntRange(0, 12),
	))

	properties.TestingRun(t)
}

func TestPropertyReplaceFirstValueIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("patching twice equals patching once", prop.ForAll(
		func(initial, state int, filler string) bool {
			text := fmt.Sprintf("\"UserLocalConfigStore\"\n{\n\t\"friends\"\n\t{\n\t\t\"Note\"\t\t%q\n\t\t\"PersonaState\"\t\t\"%d\"\n\t}\n}\n", filler, initial)
			digit := strconv.Itoa(state)
			once, ok := ReplaceFirstValue(text, "PersonaState", digit)
			if !ok {
				return false
			}
			twice, _ := ReplaceFirstValue(once, "PersonaState", digit)
			return once == twice
		},
		gen.IntRange(0, 7),
		gen.IntRange(0, 7),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
