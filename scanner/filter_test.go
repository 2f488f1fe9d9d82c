package scanner_test

import (
	"testing"

	"github.com/srg/fzlink/internal/testutils"
	"github.com/srg/fzlink/scanner"
	"github.com/stretchr/testify/assert"
)

func TestPrefixFilter(t *testing.T) {
	f := scanner.NewPrefixFilter("fzone")

	tests := []struct {
		name  string
		local string
		want  bool
	}{
		{"exact prefix", "fzone-01", true},
		{"upper case", "FZONE-A", true},
		{"mixed case", "FzOnE", true},
		{"other device", "Heart Rate", false},
		{"prefix not at start", "my-fzone", false},
		{"shorter than prefix", "fzo", false},
		{"empty name", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adv := testutils.NewAdvertisementBuilder().WithName(tt.local).WithAddress("AA:01").Build()
			assert.Equal(t, tt.want, f.Match(adv))
		})
	}
}

func TestPrefixFilter_EmptyPrefix(t *testing.T) {
	f := scanner.NewPrefixFilter("")

	assert.True(t, f.Match(testutils.FzoneAdvertisement("anything", "AA:01")))
	assert.False(t, f.Match(testutils.FzoneAdvertisement("", "AA:02")), "unnamed advertisers MUST never match")
}
