package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"contabil/internal/core/id"
	corenumerator "contabil/internal/core/numerator"
	"contabil/internal/core/retry"
	"contabil/internal/core/types"
	"contabil/internal/domain/periods"
	"contabil/pkg/numerator"
)

func companyYearFlags(fs *pflag.FlagSet) {
	fs.String("company", "", "company id")
	fs.Int("year", time.Now().Year(), "fiscal year")
}

func periodCloseFlags(fs *pflag.FlagSet) {
	fs.String("company", "", "company id")
	fs.String("period", "", "period id")
	fs.String("status", string(periods.StatusHardClose), "target status (soft_close or hard_close)")
}

func periodReopenFlags(fs *pflag.FlagSet) {
	fs.String("company", "", "company id")
	fs.String("period", "", "period id")
	fs.String("reason", "", "why the period is reopened")
}

func counterFlags(fs *pflag.FlagSet) {
	fs.String("company", "", "company id")
	fs.String("type", string(corenumerator.CounterJournal), "counter type")
	fs.String("series", "", "series")
	fs.Int("year", time.Now().Year(), "year")
}

func rangeFlags(fs *pflag.FlagSet) {
	fs.String("company", "", "company id")
	fs.String("from", "", "first posting date (yyyy-mm-dd)")
	fs.String("to", "", "last posting date (yyyy-mm-dd)")
}

func invoiceFlags(fs *pflag.FlagSet) {
	fs.String("invoice", "", "invoice id")
}

func idFlag(fs *pflag.FlagSet, name string) (id.ID, error) {
	raw, _ := fs.GetString(name)
	if raw == "" {
		return id.Nil(), fmt.Errorf("--%s is required", name)
	}
	v, err := id.Parse(raw)
	if err != nil {
		return id.Nil(), fmt.Errorf("--%s: %w", name, err)
	}
	return v, nil
}

func dateFlag(fs *pflag.FlagSet, name string) (*time.Time, error) {
	raw, _ := fs.GetString(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return &t, nil
}

func table() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
}

func printPeriods(ps []periods.Period) error {
	w := table()
	fmt.Fprintln(w, "ID\tPERIOD\tSTATUS\tCLOSED BY\tREOPEN REASON")
	for _, p := range ps {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Label(), p.Status, p.ClosedBy, p.ReopenReason)
	}
	return w.Flush()
}

func periodEnsure(ctx context.Context, a *app, fs *pflag.FlagSet) error {
	companyID, err := idFlag(fs, "company")
	if err != nil {
		return err
	}
	year, _ := fs.GetInt("year")

	created, err := a.guard.EnsureYear(ctx, companyID, year)
	if err != nil {
		return err
	}
	fmt.Printf("created %d period(s) for %d\n", len(created), year)
	return printPeriods(created)
}

func periodList(ctx context.Context, a *app, fs *pflag.FlagSet) error {
	companyID, err := idFlag(fs, "company")
	if err != nil {
		return err
	}
	year, _ := fs.GetInt("year")

	ps, err := a.guard.ListPeriods(ctx, companyID, year)
	if err != nil {
		return err
	}
	return printPeriods(ps)
}

func periodClose(ctx context.Context, a *app, fs *pflag.FlagSet) error {
	companyID, err := idFlag(fs, "company")
	if err != nil {
		return err
	}
	periodID, err := idFlag(fs, "period")
	if err != nil {
		return err
	}
	status, _ := fs.GetString("status")

	p, err := a.guard.Close(ctx, companyID, periodID, periods.Status(status))
	if err != nil {
		return err
	}
	fmt.Printf("period %s is now %s\n", p.Label(), p.Status)
	return nil
}

func periodReopen(ctx context.Context, a *app, fs *pflag.FlagSet) error {
	companyID, err := idFlag(fs, "company")
	if err != nil {
		return err
	}
	periodID, err := idFlag(fs, "period")
	if err != nil {
		return err
	}
	reason, _ := fs.GetString("reason")
	actor, _ := fs.GetString("actor")

	p, err := a.guard.Reopen(ctx, companyID, periodID, reason, actor)
	if err != nil {
		return err
	}
	fmt.Printf("period %s reopened by %s\n", p.Label(), p.ReopenedBy)
	return nil
}

func counterNext(ctx context.Context, a *app, fs *pflag.FlagSet) error {
	companyID, err := idFlag(fs, "company")
	if err != nil {
		return err
	}
	counterType, _ := fs.GetString("type")
	series, _ := fs.GetString("series")
	year, _ := fs.GetInt("year")
	key := corenumerator.Key{
		CompanyID: companyID,
		Type:      corenumerator.CounterType(strings.ToUpper(counterType)),
		Series:    series,
		Year:      year,
	}

	numbers := numerator.New(a.sequences, numerator.DefaultConfig())
	var formatted string
	err = retry.InTransaction(ctx, a.txManager, a.cfg.Retry, func(ctx context.Context) error {
		var err error
		formatted, err = numbers.Next(ctx, key)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Println(formatted)
	return nil
}

func counterList(ctx context.Context, a *app, fs *pflag.FlagSet) error {
	companyID, err := idFlag(fs, "company")
	if err != nil {
		return err
	}
	year, _ := fs.GetInt("year")

	counters, err := a.sequences.List(ctx, companyID, year)
	if err != nil {
		return err
	}
	w := table()
	fmt.Fprintln(w, "TYPE\tSERIES\tYEAR\tLAST\tUPDATED")
	for _, c := range counters {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", c.Key.Type, c.Key.Series, c.Key.Year, c.LastNumber, c.UpdatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func trialBalance(ctx context.Context, a *app, fs *pflag.FlagSet) error {
	companyID, err := idFlag(fs, "company")
	if err != nil {
		return err
	}
	from, err := dateFlag(fs, "from")
	if err != nil {
		return err
	}
	to, err := dateFlag(fs, "to")
	if err != nil {
		return err
	}

	rows, err := a.ledger.TrialBalance(ctx, companyID, from, to)
	if err != nil {
		return err
	}

	w := table()
	fmt.Fprintln(w, "ACCOUNT\tFN\tDEBIT\tCREDIT\tSOLD D\tSOLD C\t")
	totalDebit, totalCredit := types.Zero(), types.Zero()
	for _, r := range rows {
		flag := ""
		if r.Abnormal {
			flag = "!"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.AccountCode, r.Function,
			types.Format(r.Debit, 2), types.Format(r.Credit, 2),
			types.Format(r.ClosingDebit, 2), types.Format(r.ClosingCredit, 2),
			flag)
		totalDebit = totalDebit.Add(r.Debit)
		totalCredit = totalCredit.Add(r.Credit)
	}
	fmt.Fprintf(w, "TOTAL\t\t%s\t%s\t\t\t\n", types.Format(totalDebit, 2), types.Format(totalCredit, 2))
	return w.Flush()
}

func vatTransfers(ctx context.Context, a *app, fs *pflag.FlagSet) error {
	invoiceID, err := idFlag(fs, "invoice")
	if err != nil {
		return err
	}

	link, err := a.vat.GetLink(ctx, invoiceID)
	if err != nil {
		return err
	}
	transfers, err := a.vat.ListTransfers(ctx, invoiceID)
	if err != nil {
		return err
	}

	places := a.cfg.VAT.RoundingPlaces
	fmt.Printf("invoice %s (%s): gross %s, VAT %s, paid %s, transferred %s, deferred %s\n",
		link.InvoiceID, link.Direction,
		types.Format(link.GrossTotal, places), types.Format(link.VatTotal, places),
		types.Format(link.CumulativePaid, places), types.Format(link.CumulativeTransferred, places),
		types.Format(link.Deferred(), places))

	w := table()
	fmt.Fprintln(w, "DATE\tPAYMENT\tCUM. PAID\tTRANSFER\tFINAL\tENTRY")
	for _, t := range transfers {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n",
			t.PostingDate.Format(time.DateOnly),
			types.Format(t.PaymentAmount, places), types.Format(t.CumulativePaid, places),
			types.Format(t.Amount, places), t.Final, t.EntryID)
	}
	return w.Flush()
}
