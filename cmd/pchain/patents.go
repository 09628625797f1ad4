package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/tarlanskakov/patenr-ali-sh/internal/patents"
	"github.com/tarlanskakov/patenr-ali-sh/pkg/client"
)

// ── submit ───────────────────────────────────────────────────────────────────

var (
	submitTitle       string
	submitDescription string
	submitInventor    string
	submitType        string
	submitPriority    string
	submitOffChain    bool
	submitValue       float64
	submitKeywords    string
	submitRelated     string
	submitCollab      string
	submitFunding     string
	submitFile        string
	submitAgree       bool
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a patent for notarization",
	Long: `submit sends a patent to the server. On-chain submissions wait until the
block has been mined.

  pchain submit --title "Self-cleaning panel" --inventor "A. Inventor" \
      --description "A coating that sheds dust under vibration." \
      --type "Utility Patent" --file claims.pdf --agree`,
	RunE: runSubmit,
}

func init() {
	f := submitCmd.Flags()
	f.StringVar(&submitTitle, "title", "", "patent title (required)")
	f.StringVar(&submitDescription, "description", "", "patent description (required)")
	f.StringVar(&submitInventor, "inventor", "", "inventor name (required)")
	f.StringVar(&submitType, "type", "Utility Patent", "patent type")
	f.StringVar(&submitPriority, "priority", "Normal", "Low, Normal, High or Critical")
	f.BoolVar(&submitOffChain, "off-chain", false, "store without mining a block")
	f.Float64Var(&submitValue, "value", 0, "estimated value in USD")
	f.StringVar(&submitKeywords, "keywords", "", "comma-separated keywords")
	f.StringVar(&submitRelated, "related", "", "related patent IDs")
	f.StringVar(&submitCollab, "collaboration", "", "collaborators")
	f.StringVar(&submitFunding, "funding", "", "funding source")
	f.StringVar(&submitFile, "file", "", "supporting document to hash")
	f.BoolVar(&submitAgree, "agree", false, "agree to the submission terms")
	_ = submitCmd.MarkFlagRequired("title")
	_ = submitCmd.MarkFlagRequired("description")
	_ = submitCmd.MarkFlagRequired("inventor")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	req := client.SubmitRequest{
		Title:          submitTitle,
		Description:    submitDescription,
		Inventor:       submitInventor,
		PatentType:     submitType,
		Priority:       submitPriority,
		Storage:        "on-chain",
		EstimatedValue: submitValue,
		Keywords:       submitKeywords,
		RelatedPatents: submitRelated,
		Collaboration:  submitCollab,
		FundingSource:  submitFunding,
		AgreeTerms:     submitAgree,
	}
	if submitOffChain {
		req.Storage = "off-chain"
	}
	if submitFile != "" {
		doc, err := os.ReadFile(submitFile)
		if err != nil {
			return fmt.Errorf("read document: %w", err)
		}
		req.FileName = filepath.Base(submitFile)
		req.Document = doc
	}

	c, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	var spinner *pterm.SpinnerPrinter
	if !outputJSON && !submitOffChain {
		spinner, _ = pterm.DefaultSpinner.Start("Mining block...")
	}
	p, err := c.Submit(ctx, req)
	if spinner != nil {
		_ = spinner.Stop()
	}
	if err != nil {
		var ve *client.ValidationError
		if errors.As(err, &ve) {
			for _, problem := range ve.Problems {
				pterm.Error.Println(problem)
			}
		}
		return err
	}

	if outputJSON {
		return printJSON(p)
	}
	if p.OnChain {
		pterm.Success.Printfln("Patent %s recorded in block #%d", p.ID, *p.BlockIndex)
	} else if submitOffChain {
		pterm.Info.Printfln("Patent %s stored off-chain", p.ID)
	} else {
		pterm.Warning.Printfln("Patent %s could not be mined and was stored off-chain", p.ID)
	}
	rows := [][]string{
		{"Field", "Value"},
		{"Patent ID", p.ID},
		{"Status", p.Status},
		{"Doc hash", p.DocHash},
		{"Verification score", fmt.Sprintf("%d%%", p.VerificationScore)},
		{"Block hash", p.BlockHash},
	}
	if p.FileName != "" {
		rows = append(rows, []string{"Document", fmt.Sprintf("%s (%s)", p.FileName, patents.FileSize(p.FileSize))})
	}
	return renderTable(rows)
}

// ── patent ───────────────────────────────────────────────────────────────────

var patentCmd = &cobra.Command{
	Use:   "patent <id>",
	Short: "Show one patent record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		p, err := c.Patent(ctx, args[0])
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(p)
		}
		storage := "off-chain"
		if p.OnChain && p.BlockIndex != nil {
			storage = fmt.Sprintf("block #%d", *p.BlockIndex)
		}
		rows := [][]string{
			{"Field", "Value"},
			{"Patent ID", p.ID},
			{"Title", p.Title},
			{"Inventor", p.Inventor},
			{"Type", p.PatentType},
			{"Priority", p.Priority},
			{"Status", p.Status},
			{"Storage", storage},
			{"Submitted", p.Timestamp.Local().Format(time.DateTime)},
			{"Verification score", fmt.Sprintf("%d%%", p.VerificationScore)},
			{"Doc hash", p.DocHash},
		}
		if p.FileName != "" {
			rows = append(rows, []string{"Document", fmt.Sprintf("%s (%s)", p.FileName, patents.FileSize(p.FileSize))})
		}
		return renderTable(rows)
	},
}

// ── search ───────────────────────────────────────────────────────────────────

var (
	searchType       string
	searchStatus     string
	searchPriorities []string
	searchStorage    string
	searchFrom       string
	searchTo         string
	searchSort       string
)

var searchCmd = &cobra.Command{
	Use:   "search [term]",
	Short: "Search patents on and off the chain",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := client.Filter{
			PatentType: searchType,
			Status:     searchStatus,
			Priorities: searchPriorities,
			Storage:    searchStorage,
			Sort:       searchSort,
		}
		if len(args) == 1 {
			f.Term = args[0]
		}
		var err error
		if f.From, err = parseDay(searchFrom); err != nil {
			return fmt.Errorf("--from: %w", err)
		}
		if f.To, err = parseDay(searchTo); err != nil {
			return fmt.Errorf("--to: %w", err)
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		results, err := c.Search(ctx, f)
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(results)
		}
		if len(results) == 0 {
			pterm.Info.Println("No patents match")
			return nil
		}
		rows := [][]string{{"Patent ID", "Title", "Inventor", "Type", "Priority", "Status", "Storage", "Block", "Score", "Date"}}
		for _, p := range results {
			block := "-"
			storage := "off-chain"
			if p.OnChain {
				storage = "on-chain"
				if p.BlockIndex != nil {
					block = strconv.Itoa(*p.BlockIndex)
				}
			}
			rows = append(rows, []string{
				p.ID, p.Title, p.Inventor, p.PatentType, p.Priority, p.Status, storage, block,
				strconv.Itoa(p.VerificationScore), p.Timestamp.Local().Format(time.DateOnly),
			})
		}
		if err := renderTable(rows); err != nil {
			return err
		}
		pterm.Info.Printfln("%d patent(s)", len(results))
		return nil
	},
}

func init() {
	f := searchCmd.Flags()
	f.StringVar(&searchType, "type", "", "patent type")
	f.StringVar(&searchStatus, "status", "", "Active, Pending, Approved or Rejected")
	f.StringSliceVar(&searchPriorities, "priority", nil, "one or more priorities")
	f.StringVar(&searchStorage, "storage", "", "on-chain or off-chain")
	f.StringVar(&searchFrom, "from", "", "earliest submission day (YYYY-MM-DD)")
	f.StringVar(&searchTo, "to", "", "latest submission day (YYYY-MM-DD)")
	f.StringVar(&searchSort, "sort", "", "newest, oldest, title or score")
}

func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, s)
}

// ── export ───────────────────────────────────────────────────────────────────

var (
	exportFormat   string
	exportOut      string
	exportChain    bool
	exportOffChain bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export patent records as CSV or JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !exportChain && !exportOffChain {
			return fmt.Errorf("nothing to export: enable --chain or --offchain")
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		body, err := c.Export(ctx, exportFormat, exportChain, exportOffChain)
		if err != nil {
			return err
		}
		if exportOut == "" || exportOut == "-" {
			_, err = os.Stdout.Write(body)
			return err
		}
		if err := os.WriteFile(exportOut, body, 0o644); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
		pterm.Success.Printfln("Wrote %d bytes to %s", len(body), exportOut)
		return nil
	},
}

func init() {
	f := exportCmd.Flags()
	f.StringVar(&exportFormat, "format", "csv", "csv or json")
	f.StringVarP(&exportOut, "output", "o", "", "output file (default stdout)")
	f.BoolVar(&exportChain, "chain", true, "include on-chain records")
	f.BoolVar(&exportOffChain, "offchain", true, "include off-chain records")
}
