package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/siemql/siemql/internal/format"
	"github.com/siemql/siemql/internal/logstore"
	"github.com/siemql/siemql/internal/pipeline"
	"github.com/siemql/siemql/internal/pkg/security"
	"github.com/siemql/siemql/internal/session"
)

const prompt = "\nQuery> "

var errSearchFailed = errors.New("search failed")

// output controls how results are printed.
type output struct {
	format string // text or json
	jq     string
}

func outputFlags(cmd *cobra.Command) (output, error) {
	o := output{}
	o.format, _ = cmd.Flags().GetString("format")
	if cmd.Flags().Lookup("jq") != nil {
		o.jq, _ = cmd.Flags().GetString("jq")
	}
	if o.format != "text" && o.format != "json" {
		return o, fmt.Errorf("unknown output format %q (want text or json)", o.format)
	}
	return o, nil
}

// write prints one handled query.
func (o output) write(w io.Writer, res *pipeline.Result) error {
	r := format.NewReport(res.Effective, logstore.EncodeRequest(res.Request), res.Response)

	if o.jq != "" {
		values, err := format.Filter(r, o.jq)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		for _, v := range values {
			if err := enc.Encode(v); err != nil {
				return err
			}
		}
		return nil
	}

	if o.format == "json" {
		return format.WriteJSON(w, r)
	}
	return format.WriteText(w, r)
}

func replCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive query session",
		Long: `Read questions line by line and answer each one. Follow-up questions
inherit context from earlier turns.

  exit, quit                    leave
  !insert user=admin event=...  store a document
  !history                      list earlier turns
  !reset                        forget earlier turns`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := outputFlags(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cmd, stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			sess := session.NewContext(a.cfg.Session.MaxTurns)
			return runREPL(cmd.Context(), a.orch, sess, cmd.InOrStdin(), cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().String("jq", "", "jq expression applied to each result")
	return cmd
}

// runREPL answers lines from in until exit, quit or end of input.
func runREPL(ctx context.Context, orch *pipeline.Orchestrator, sess *session.Context, in io.Reader, w io.Writer, out output) error {
	fmt.Fprintln(w, "siemql interactive session. Type 'exit' to quit.")

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(w, prompt)
		if !sc.Scan() {
			fmt.Fprintln(w)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())

		switch lower := strings.ToLower(line); {
		case line == "":
			continue
		case lower == "exit" || lower == "quit":
			return nil
		case line == "!history":
			printHistory(w, sess)
			continue
		case line == "!reset":
			sess.Reset()
			fmt.Fprintln(w, "Session cleared.")
			continue
		case strings.HasPrefix(line, "!insert "):
			insertLine(ctx, orch, w, strings.TrimPrefix(line, "!insert "))
			continue
		}

		res := orch.HandleQuery(ctx, line, sess)
		if err := out.write(w, res); err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
		}
	}
}

func insertLine(ctx context.Context, orch *pipeline.Orchestrator, w io.Writer, line string) {
	doc, err := pipeline.ParseDocument(line)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	res, err := orch.Insert(ctx, doc)
	if err != nil {
		fmt.Fprintf(w, "Insert failed: %v\n", err)
		return
	}
	fmt.Fprintf(w, "Inserted: %s into %s\n", res.ID, res.Index)
}

func printHistory(w io.Writer, sess *session.Context) {
	turns := sess.Turns()
	if len(turns) == 0 {
		fmt.Fprintln(w, "No earlier turns.")
		return
	}
	for i, t := range turns {
		status := "ok"
		if t.Response != nil && t.Response.Failed() {
			status = "failed"
		}
		fmt.Fprintf(w, "%3d  %s  %-6s  %s\n", i+1, t.At.Format("15:04:05"), status, t.RawText)
	}
}

func askCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question",
		Example: `  siemql ask failed logins per ip in the last 6 hours
  siemql ask --jq '.aggregations.by_ip[].key' failed logins per ip`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := outputFlags(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cmd, stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			return runAsk(cmd.Context(), a.orch, strings.Join(args, " "), cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().String("jq", "", "jq expression applied to the result")
	return cmd
}

// runAsk answers one stateless question. A failed search is printed and
// also reported as an error so scripts see a non-zero exit.
func runAsk(ctx context.Context, orch *pipeline.Orchestrator, text string, w io.Writer, out output) error {
	text = security.SanitizeQuery(text)
	if err := security.ValidateQuery(text); err != nil {
		return err
	}
	res := orch.HandleQuery(ctx, text, nil)
	if err := out.write(w, res); err != nil {
		return err
	}
	if res.Response.Failed() {
		return errSearchFailed
	}
	return nil
}

func insertCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "insert key=value...",
		Short:   "Store one document in the index",
		Example: `  siemql insert user=admin event="failed login" source.ip=10.0.0.5`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := pipeline.ParseDocumentArgs(args)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cmd, stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.orch.Insert(cmd.Context(), doc)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Inserted: %s into %s\n", res.ID, res.Index)
			return nil
		},
	}
}
