// Command classify runs the visit classifier locally and prints the verdict
// and the routing decision a link would take for it.
//
//	classify -ua "TikTok 26.1.3 rv:261303" -referrer https://www.tiktok.com/ -H "Accept-Language: en"
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/smartlink/smartlink/internal/detection"
	"github.com/smartlink/smartlink/internal/model"
	"github.com/smartlink/smartlink/internal/routing"
)

type headerList []string

func (h *headerList) String() string { return strings.Join(*h, ", ") }

func (h *headerList) Set(v string) error {
	*h = append(*h, v)
	return nil
}

type options struct {
	userAgent    string
	ip           string
	referrer     string
	headers      headerList
	challenge    bool
	tiktokDirect bool
	safeURL      string
	asJSON       bool
	noColor      bool
}

type report struct {
	Verdict    detection.Verdict `json:"verdict"`
	LegacyBot  bool              `json:"legacy_bot"`
	Suspicious bool              `json:"suspicious"`
	ClickType  string            `json:"click_type"`
	Reached    string            `json:"target_reached"`
	SafeKind   string            `json:"safe_kind,omitempty"`
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "classify:", err)
		os.Exit(2)
	}
}

func run(args []string, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	headers, err := toHeaders(opts.headers)
	if err != nil {
		return err
	}

	rep := classify(opts, headers)

	if opts.asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	color.NoColor = color.NoColor || opts.noColor
	printReport(stdout, rep)
	return nil
}

func parseFlags(args []string) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("classify", flag.ContinueOnError)
	fs.StringVar(&opts.userAgent, "ua", "", "User-Agent of the visit")
	fs.StringVar(&opts.ip, "ip", "", "Source IP of the visit")
	fs.StringVar(&opts.referrer, "referrer", "", "Referer of the visit")
	fs.Var(&opts.headers, "H", "Extra request header (repeatable, \"Key: Value\")")
	fs.BoolVar(&opts.challenge, "challenge", true, "Link has the JavaScript challenge enabled")
	fs.BoolVar(&opts.tiktokDirect, "tiktok-direct", false, "Link sends TikTok traffic straight to the target")
	fs.StringVar(&opts.safeURL, "safe-url", "", "Link's custom safe URL")
	fs.BoolVar(&opts.asJSON, "json", false, "Print the report as JSON")
	fs.BoolVar(&opts.noColor, "no-color", false, "Disable colour output")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return opts, nil
}

func toHeaders(headers headerList) (map[string]string, error) {
	out := make(map[string]string, len(headers))
	for _, h := range headers {
		key, value, ok := strings.Cut(h, ":")
		key = strings.TrimSpace(key)
		if !ok {
			return nil, fmt.Errorf("invalid header %q (expected Key: Value)", h)
		}
		if key == "" {
			return nil, fmt.Errorf("invalid header %q (empty key)", h)
		}
		out[key] = strings.TrimSpace(value)
	}
	return out, nil
}

func classify(opts *options, headers map[string]string) report {
	verdict := detection.Classify(opts.userAgent, opts.ip, opts.referrer, headers)
	in := routing.Input{
		Verdict:    verdict,
		LegacyBot:  detection.IsLegacyBot(opts.userAgent),
		Suspicious: detection.IsSuspicious(opts.userAgent),
		Link: routing.LinkConfig{
			UseJSChallenge:   opts.challenge,
			DirectFromTikTok: opts.tiktokDirect,
			SafeURL:          opts.safeURL,
		},
	}
	d := routing.Decide(in)

	return report{
		Verdict:    verdict,
		LegacyBot:  in.LegacyBot,
		Suspicious: in.Suspicious,
		ClickType:  string(d.ClickType),
		Reached:    string(d.Target),
		SafeKind:   string(d.Safe),
	}
}

func printReport(w io.Writer, rep report) {
	label := color.New(color.FgCyan).SprintFunc()

	verdict := color.New(color.FgGreen, color.Bold).Sprint("HUMAN")
	switch {
	case rep.Verdict.IsBot || rep.LegacyBot:
		verdict = color.New(color.FgRed, color.Bold).Sprint("BOT")
	case rep.ClickType == string(model.ClickSuspect):
		verdict = color.New(color.FgYellow, color.Bold).Sprint("SUSPECT")
	}

	methods := "-"
	if len(rep.Verdict.DetectionMethods) > 0 {
		methods = strings.Join(rep.Verdict.DetectionMethods, ", ")
	}

	fmt.Fprintf(w, "%s %s\n", label("verdict:   "), verdict)
	fmt.Fprintf(w, "%s %.2f\n", label("confidence:"), rep.Verdict.ConfidenceScore)
	fmt.Fprintf(w, "%s %s\n", label("risk:      "), rep.Verdict.RiskLevel)
	fmt.Fprintf(w, "%s %s\n", label("platform:  "), rep.Verdict.Platform)
	fmt.Fprintf(w, "%s %s\n", label("methods:   "), methods)
	fmt.Fprintf(w, "%s legacy_bot=%t suspicious=%t\n", label("checks:    "), rep.LegacyBot, rep.Suspicious)

	route := rep.Reached
	if rep.SafeKind != "" {
		route += " (" + rep.SafeKind + ")"
	}
	fmt.Fprintf(w, "%s %s\n", label("route:     "), route)
}
