package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"tradejoy/internal/assistant"
	"tradejoy/internal/broker"
	"tradejoy/internal/cache"
	"tradejoy/internal/intent"
)

const quoteSweepInterval = time.Minute

// console speaks and notifies by writing lines to a terminal.
type console struct {
	mu sync.Mutex
	w  io.Writer
}

func (c *console) Speak(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "> %s\n", text)
}

func (c *console) Notify(n assistant.Notice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "[%s] %s\n", n.Kind, n.Message)
}

// Show prints the data navigation loaded for the selected section.
func (c *console) Show(res assistant.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := tabwriter.NewWriter(c.w, 0, 0, 2, ' ', 0)
	for _, s := range res.Indices {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%.2f%%\n", s.Symbol, s.Price.StringFixed(2), s.Change.StringFixed(2), s.ChangePercent)
	}
	if p := res.Portfolio; p != nil {
		for _, pos := range p.Positions {
			fmt.Fprintf(w, "  %s\t%d\t%s\t%s\t%s\n", pos.Symbol, pos.Quantity, pos.AvgPrice.StringFixed(2), pos.Value.StringFixed(2), pos.PnL.StringFixed(2))
		}
		fmt.Fprintf(w, "  Net worth\t%s\tCash\t%s\n", p.NetWorth().StringFixed(2), p.Cash.StringFixed(2))
	}
	for _, item := range res.Watchlist {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%.2f%%\n", item.Symbol, item.Price.StringFixed(2), item.Change.StringFixed(2), item.ChangePercent)
	}
	for _, tr := range res.History {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%d\t%s\n", tr.Timestamp, strings.ToUpper(tr.Action), tr.Symbol, tr.Quantity, tr.Total.StringFixed(2))
	}
	_ = w.Flush()

	if _, nav := res.Intent.(intent.Navigate); nav && res.Message != "" {
		fmt.Fprintf(c.w, "  (%s)\n", res.Message)
	}
}

// lineTranscriber stands in for a recogniser: each non-blank input line is
// one final transcript. It returns io.EOF once input is exhausted.
type lineTranscriber struct {
	sc  *bufio.Scanner
	err error
}

func newLineTranscriber(r io.Reader) *lineTranscriber {
	return &lineTranscriber{sc: bufio.NewScanner(r)}
}

func (t *lineTranscriber) Transcribe(ctx context.Context) (string, error) {
	for t.sc.Scan() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if line := strings.TrimSpace(t.sc.Text()); line != "" {
			return line, nil
		}
	}
	if err := t.sc.Err(); err != nil {
		t.err = err
		return "", err
	}
	return "", io.EOF
}

func newAssistantCommand(a *app) *cobra.Command {
	var (
		mode     string
		username string
		email    string
		password string
	)

	cmd := &cobra.Command{
		Use:   "assistant",
		Short: "Run the voice assistant on typed transcripts",
		Long: `assistant reads one utterance per line from stdin and executes it. In
trading mode commands go to the trading API at TRADING_API_URL; in ledger
mode sales and expenses are recorded in the ledger.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			interp, err := a.interpreter(mode)
			if err != nil {
				return err
			}

			out := &console{w: cmd.OutOrStdout()}
			opts := assistant.Options{
				Interpreter: interp,
				Speaker:     out,
				Notifier:    out,
				Logger:      a.logger,
			}

			if mode == modeLedger {
				l, err := a.loadLedger(ctx)
				if err != nil {
					return err
				}
				opts.Recorder = l
			} else if a.cfg.TradingAPIURL != "" {
				client, err := broker.NewClient(broker.Options{
					BaseURL:  a.cfg.TradingAPIURL,
					Timeout:  a.cfg.TradingAPITimeout,
					RPS:      a.cfg.TradingAPIRPS,
					QuoteTTL: a.cfg.QuoteCacheTTL,
					Logger:   a.logger,
				})
				if err != nil {
					return err
				}
				opts.Broker = client

				if quotes := client.QuoteCache(); quotes != nil {
					caches := cache.NewManager(a.logger)
					caches.Register("quotes", quotes)
					sweepCtx, stop := context.WithCancel(ctx)
					caches.Start(sweepCtx, quoteSweepInterval)
					defer func() {
						stop()
						caches.Wait()
					}()
				}
			}

			asst, err := assistant.New(opts)
			if err != nil {
				return err
			}
			asst.Start(ctx)

			switch {
			case username != "" && email != "":
				if err := asst.Register(ctx, username, email, password); err != nil {
					return fmt.Errorf("register: %w", err)
				}
			case username != "":
				if err := asst.Login(ctx, username, password); err != nil {
					return fmt.Errorf("login: %w", err)
				}
			}

			return runAssistant(ctx, asst, newLineTranscriber(cmd.InOrStdin()), out)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", modeTrading, "interpreter mode: trading or ledger")
	cmd.Flags().StringVar(&username, "username", "", "log in to the trading API before reading commands")
	cmd.Flags().StringVar(&email, "email", "", "register --username with this email instead of logging in")
	cmd.Flags().StringVar(&password, "password", "", "password for --username")
	return cmd
}

// runAssistant listens until the transcriber is exhausted. Command failures
// have already been spoken or notified and do not stop the loop.
func runAssistant(ctx context.Context, asst *assistant.Assistant, t *lineTranscriber, out *console) error {
	for {
		res, err := asst.Listen(ctx, t)
		switch {
		case err == nil:
			out.Show(res)
		case errors.Is(err, io.EOF), ctx.Err() != nil:
			return nil
		case t.err != nil:
			return fmt.Errorf("read input: %w", t.err)
		}
	}
}
