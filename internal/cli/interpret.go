package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"tradejoy/internal/intent"
)

const (
	modeTrading = "trading"
	modeLedger  = "ledger"
)

// interpretation is one line of `tradejoy interpret` output.
type interpretation struct {
	Text string `json:"text"`
	Mode string `json:"mode"`
	intent.Envelope
	Error       string   `json:"error,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

func newInterpretCommand(a *app) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "interpret [text...]",
		Short: "Interpret utterances and print the resulting intents as JSON",
		Long: `interpret classifies each argument as one utterance and prints one JSON
object per line. Without arguments utterances are read from stdin, one per
line.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			interp, err := a.interpreter(mode)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			emit := func(text string) error {
				return enc.Encode(interpretLine(interp, text))
			}

			if len(args) > 0 {
				for _, text := range args {
					if err := emit(text); err != nil {
						return err
					}
				}
				return nil
			}
			return eachLine(cmd.InOrStdin(), emit)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", modeTrading, "interpreter mode: trading or ledger")
	return cmd
}

func (a *app) interpreter(mode string) (*intent.Interpreter, error) {
	switch mode {
	case modeTrading:
		return intent.NewTrading(), nil
	case modeLedger:
		return LedgerInterpreter(a.cfg)
	}
	return nil, fmt.Errorf("unknown mode %q (want %s or %s)", mode, modeTrading, modeLedger)
}

func interpretLine(interp *intent.Interpreter, text string) interpretation {
	in, err := interp.Interpret(text)
	out := interpretation{
		Text:     text,
		Mode:     interp.Mode().String(),
		Envelope: intent.Wrap(in),
	}
	if err != nil {
		out.Error = err.Error()
		var pe *intent.ParseError
		if errors.As(err, &pe) {
			out.Error = pe.Reason.Error()
			out.Suggestions = pe.Suggestions
		}
	}
	return out
}

// eachLine calls fn for every non-blank line of r.
func eachLine(r io.Reader, fn func(string) error) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return sc.Err()
}
