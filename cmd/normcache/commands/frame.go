package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.trai.ch/zerr"

	"github.com/unkn0wn-root/normcache/config"
	"github.com/unkn0wn-root/normcache/internal/wire"
	"github.com/unkn0wn-root/normcache/record"
	"github.com/unkn0wn-root/normcache/store"
)

func (c *CLI) newFrameCmd() *cobra.Command {
	var asHex bool
	cmd := &cobra.Command{
		Use:   "frame [file]",
		Short: "Decode one stored record frame (stdin when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			if asHex {
				if raw, err = hex.DecodeString(strings.TrimSpace(string(raw))); err != nil {
					return zerr.Wrap(err, "invalid hex input")
				}
			}
			return printFrame(cmd.OutOrStdout(), raw)
		},
	}
	cmd.Flags().BoolVar(&asHex, "hex", false, "Input is hex encoded")
	return cmd
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, zerr.Wrap(err, "failed to read stdin")
		}
		return b, nil
	}
	b, err := os.ReadFile(args[0]) //nolint:gosec // path is provided by user
	if err != nil {
		return nil, zerr.Wrap(err, "failed to read frame file")
	}
	return b, nil
}

func printFrame(w io.Writer, raw []byte) error {
	f, err := wire.Decode(raw)
	if err != nil {
		return err
	}
	name, ok := config.CodecName(f.Codec)
	if !ok {
		return zerr.With(config.ErrUnknownCodec, "id", int(f.Codec))
	}
	cd, _, err := config.CodecFor(name, 0)
	if err != nil {
		return err
	}
	wv, err := cd.Decode(f.Payload)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to decode payload"), "codec", name)
	}
	rec, err := record.FromWire(wv)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(w, "key:    %s\nepoch:  %d\ncodec:  %s\nfields: %d\n", f.Key, f.Epoch, name, len(rec.Fields))
	for st := store.NewRecordStream(rec); st.Next(); {
		_, _ = fmt.Fprintf(w, "  %s = %s\n", st.FieldKey(), render(st.Value()))
	}
	return nil
}

func render(v record.FieldValue) string {
	switch tv := v.(type) {
	case record.Reference:
		return "-> " + tv.Key
	case record.List:
		parts := make([]string, len(tv))
		for i, e := range tv {
			parts[i] = render(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case record.Scalar:
		return fmt.Sprintf("%v", tv.V)
	}
	return fmt.Sprintf("%v", v)
}
