package main

import (
	"strings"
	"testing"

	"github.com/srg/fzlink/codec"
	"github.com/srg/fzlink/internal/testutils"
	"github.com/stretchr/testify/suite"
)

type EncodeTestSuite struct {
	CommandTestSuite
}

func (s *EncodeTestSuite) TestEncode_SingleWrite() {
	// GOAL: Verify a short command is written unframed as its text bytes
	//
	// TEST SCENARIO: encode 55AA01 → one 6-byte write of the ASCII text

	output, err := s.ExecuteCommand("encode", "55AA01")
	s.Require().NoError(err)

	testutils.NewTextAsserter(s.T()).Assert(output, `
6 bytes, 1 write(s)
[1/1] 6 bytes: 353541413031
`)
}

func (s *EncodeTestSuite) TestEncode_KeepAlive() {
	output, err := s.ExecuteCommand("encode", codec.KeepAliveCommand)
	s.Require().NoError(err)

	s.Contains(output, "28 bytes, 1 write(s)")
}

func (s *EncodeTestSuite) TestEncode_Segmented() {
	// GOAL: Verify a 400-byte command is shown as three framed writes within the ceiling
	//
	// TEST SCENARIO: encode 400 chars → 180/180/52 byte frames with index/count headers

	output, err := s.ExecuteCommand("encode", strings.Repeat("A", 400))
	s.Require().NoError(err)

	lines := strings.Split(strings.TrimSpace(output), "\n")
	s.Require().Len(lines, 4)
	s.Equal("400 bytes, 3 write(s)", lines[0])
	s.True(strings.HasPrefix(lines[1], "[1/3] 180 bytes crc="), lines[1])
	s.True(strings.HasPrefix(lines[2], "[2/3] 180 bytes crc="), lines[2])
	s.True(strings.HasPrefix(lines[3], "[3/3] 52 bytes crc="), lines[3])
	s.Contains(lines[1], ": 0003", "frame MUST start with index 0 and count 3")
}

func (s *EncodeTestSuite) TestEncode_CustomMax() {
	output, err := s.ExecuteCommand("encode", "0123456789", "--max", "8")
	s.Require().NoError(err)

	s.Contains(output, "10 bytes, 3 write(s)")
}

func (s *EncodeTestSuite) TestEncode_Errors() {
	_, err := s.ExecuteCommand("encode", "")
	s.ErrorIs(err, codec.ErrEmptyCommand)

	_, err = s.ExecuteCommand("encode", strings.Repeat("A", 200), "--max", "4")
	s.ErrorIs(err, codec.ErrInvalidWriteSize)
}

func TestEncodeTestSuite(t *testing.T) {
	suite.Run(t, new(EncodeTestSuite))
}
