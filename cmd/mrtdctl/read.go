package main

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/barnettlynn/emrtd/bac"
	"github.com/barnettlynn/emrtd/mrtd"
	"github.com/barnettlynn/emrtd/passport"
	"github.com/barnettlynn/emrtd/transport"
)

var readCmd = &cobra.Command{
	Use:   "read [dg1 dg2 ...]",
	Short: "Run BAC and read one or more Elementary Files",
	Long: `read connects to a reader, runs Basic Access Control with the
configured DBA keys, selects the eMRTD application and reads each named
EF. Each argument is either "COM", "SOD", "CardAccess", "CardSecurity",
or a Data Group number 1-16 (e.g. "1", "DG2").`,
	RunE: runRead,
}

func init() {
	readCmd.Flags().Bool("card-access-only", false, "read only EF.CardAccess (no BAC, no DF select)")
}

func runRead(cmd *cobra.Command, args []string) error {
	cfg, err := loadEffectiveConfig()
	if err != nil {
		return err
	}
	cardAccessOnly, _ := cmd.Flags().GetBool("card-access-only")
	if !cardAccessOnly && len(args) == 0 {
		return fmt.Errorf("at least one EF must be named, e.g. \"mrtdctl read 1 2 COM\"")
	}

	log := sessionLogger()
	readerIdx, err := pickReader(cfg)
	if err != nil {
		return err
	}

	tr, err := transport.NewPCSC(readerIdx)
	if err != nil {
		return fmt.Errorf("open reader %d: %w", readerIdx, err)
	}

	ctx, cancel := commandContext()
	defer cancel()

	session := mrtd.NewSession(tr)
	if err := session.Connect(ctx, "Insert passport"); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer session.Disconnect("", "")
	log.Info("connected to reader", "reader_index", readerIdx)

	p := passport.New(session)

	type row struct {
		ef  string
		n   int
		err error
	}
	var rows []row

	if cardAccessOnly {
		data, err := p.ReadCardAccess(ctx)
		rows = append(rows, row{ef: "CardAccess", n: len(data), err: err})
	} else {
		if !cfg.HasDBAKeys() {
			return fmt.Errorf("DBA keys not configured; pass --doc-number/--dob/--doe or use --card-access-only")
		}
		keys := bac.DeriveKeys(cfg.DBA.DocumentNumber, cfg.DBA.DateOfBirth, cfg.DBA.DateOfExpiry)
		if err := session.StartSession(ctx, keys); err != nil {
			return fmt.Errorf("BAC failed: %w", err)
		}
		log.Info("BAC session established")

		for _, arg := range args {
			switch arg {
			case "COM", "com":
				data, err := p.ReadCOM(ctx)
				rows = append(rows, row{ef: "COM", n: len(data), err: err})
			case "SOD", "sod":
				data, err := p.ReadSOD(ctx)
				rows = append(rows, row{ef: "SOD", n: len(data), err: err})
			case "CardAccess", "cardaccess":
				data, err := p.ReadCardAccess(ctx)
				rows = append(rows, row{ef: "CardAccess", n: len(data), err: err})
			case "CardSecurity", "cardsecurity":
				data, err := p.ReadCardSecurity(ctx)
				rows = append(rows, row{ef: "CardSecurity", n: len(data), err: err})
			default:
				n, perr := parseDGArg(arg)
				if perr != nil {
					rows = append(rows, row{ef: arg, err: perr})
					continue
				}
				data, err := p.ReadDG(ctx, n)
				rows = append(rows, row{ef: fmt.Sprintf("DG%d", n), n: len(data), err: err})
			}
		}
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"EF", "Bytes", "Result"})
	failures := 0
	for _, r := range rows {
		status := "ok"
		if r.err != nil {
			status = r.err.Error()
			failures++
		}
		t.AppendRow(table.Row{r.ef, r.n, status})
	}
	fmt.Println(t.Render())

	if failures > 0 {
		return fmt.Errorf("%d of %d reads failed", failures, len(rows))
	}
	return nil
}

// parseDGArg parses "N", "DGN" or "dgN" into the integer N; the 1..16
// range is checked by passport.ReadDG, not here.
func parseDGArg(arg string) (int, error) {
	s := arg
	if len(s) > 2 && (s[:2] == "DG" || s[:2] == "dg") {
		s = s[2:]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("not a recognized EF name or DG number: %q", arg)
	}
	return n, nil
}
