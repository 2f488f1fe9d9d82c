package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/srg/fzlink/codec"
)

// encodeCmd represents the encode command
var encodeCmd = &cobra.Command{
	Use:   "encode <command>",
	Short: "Show the writes a command is sent as",
	Long: `Encodes a command the way connect --send does and prints every write
as hex. Commands longer than the write ceiling are split into frames
carrying a 4-byte [index][count][crc16] header.`,
	Args: cobra.ExactArgs(1),
	RunE: runEncode,
}

var encodeMax int

func init() {
	encodeCmd.Flags().IntVar(&encodeMax, "max", codec.MaxWriteSize, "Maximum bytes per write")
}

func runEncode(cmd *cobra.Command, args []string) error {
	payload, err := codec.Encode(args[0])
	if err != nil {
		return err
	}
	chunks, err := codec.Split(payload, encodeMax)
	if err != nil {
		return err
	}

	cmd.SilenceUsage = true
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "%d bytes, %d write(s)\n", len(payload), len(chunks))
	for _, c := range chunks {
		frame := c.Bytes()
		if c.Framed {
			fmt.Fprintf(out, "[%d/%d] %d bytes crc=%04X: %s\n", c.Index+1, c.Count, len(frame), c.CRC, strings.ToUpper(hex.EncodeToString(frame)))
			continue
		}
		fmt.Fprintf(out, "[1/1] %d bytes: %s\n", len(frame), strings.ToUpper(hex.EncodeToString(frame)))
	}
	return nil
}
