package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"tally/internal/core"
	"tally/internal/services"
)

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func renderTransactions(w io.Writer, txs []core.Transaction, expenses bool, loc *time.Location) error {
	if len(txs) == 0 {
		_, err := fmt.Fprintln(w, "No records")
		return err
	}
	tw := table(w)
	if expenses {
		fmt.Fprintln(tw, "DATE\tAMOUNT\tCATEGORY\tDESCRIPTION\tID")
	} else {
		fmt.Fprintln(tw, "DATE\tAMOUNT\tDESCRIPTION\tNOTE\tID")
	}
	for _, t := range txs {
		date := t.Date.In(loc).Format(time.DateOnly)
		if expenses {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", date, t.Amount, t.Category, t.Description, t.ID)
		} else {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", date, t.Amount, t.Description, t.Note, t.ID)
		}
	}
	fmt.Fprintf(tw, "\tTOTAL %s\t\t\t\n", core.Sum(txs))
	return tw.Flush()
}

func monthLabel(p core.Period) string {
	return fmt.Sprintf("%s %d", time.Month(p.Month+1), p.Year)
}

func renderBudgets(w io.Writer, p core.Period, views []services.BudgetView, sum services.BudgetSummary) error {
	fmt.Fprintf(w, "Budgets for %s\n", monthLabel(p))
	if len(views) == 0 {
		_, err := fmt.Fprintln(w, "No budgets")
		return err
	}
	tw := table(w)
	fmt.Fprintln(tw, "CATEGORY\tBUDGET\tSPENT\tREMAINING\tUSED\tID")
	for _, v := range views {
		mark := ""
		if v.Archived {
			mark = " (archived)"
		}
		fmt.Fprintf(tw, "%s%s\t%s\t%s\t%s\t%d%%\t%s\n", v.Category, mark, v.Amount, v.Spent, v.Remaining, v.Percent, v.BudgetID)
	}
	fmt.Fprintf(tw, "TOTAL\t%s\t%s\t%s\t%.1f%%\t\n", sum.TotalBudget, sum.TotalSpent, sum.Remaining, sum.UtilizationRate)
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(sum.OverBudget) > 0 {
		fmt.Fprintf(w, "Over budget: %s\n", strings.Join(sum.OverBudget, ", "))
	}
	return nil
}

func renderRules(w io.Writer, rules []core.RecurringRule, now time.Time, loc *time.Location) error {
	if len(rules) == 0 {
		_, err := fmt.Fprintln(w, "No recurring expenses")
		return err
	}
	tw := table(w)
	fmt.Fprintln(tw, "DESCRIPTION\tAMOUNT\tCATEGORY\tFREQUENCY\tNEXT DUE\tIN DAYS\tID")
	for _, r := range rules {
		freq := string(r.Frequency)
		if r.DayOfMonth != nil {
			freq = fmt.Sprintf("%s (day %d)", freq, *r.DayOfMonth)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.Description, r.Amount, r.Category, freq,
			r.NextDue.In(loc).Format(time.DateOnly), services.DaysUntil(r.NextDue, now), r.ID)
	}
	return tw.Flush()
}

func renderShortcuts(w io.Writer, shortcuts []core.Shortcut) error {
	if len(shortcuts) == 0 {
		_, err := fmt.Fprintln(w, "No shortcuts")
		return err
	}
	tw := table(w)
	fmt.Fprintln(tw, "DESCRIPTION\tAMOUNT\tCATEGORY\tUSED\tID")
	for _, sc := range shortcuts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", sc.Description, sc.Amount, sc.Category, sc.UsageCount, sc.ID)
	}
	return tw.Flush()
}

func renderAnalytics(w io.Writer, in services.RangeInsights, loc *time.Location) error {
	tw := table(w)
	fmt.Fprintf(tw, "Range\t%s since %s\n", in.Range, in.Since.In(loc).Format(time.DateOnly))
	fmt.Fprintf(tw, "Total spent\t%s\n", in.Total)
	fmt.Fprintf(tw, "Daily average\t%s\n", in.AvgPerDay)
	if in.TopCategory != "" {
		fmt.Fprintf(tw, "Top category\t%s (%s)\n", in.TopCategory, in.TopAmount)
	}
	fmt.Fprintf(tw, "Transactions\t%d\n", in.TransactionCount)
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(in.ByCategory) > 0 {
		fmt.Fprintln(w)
		tw = table(w)
		fmt.Fprintln(tw, "CATEGORY\tAMOUNT\tSHARE")
		for _, c := range in.ByCategory {
			share, _ := c.Amount.Ratio(in.Total).Shift(2).Round(0).Float64()
			fmt.Fprintf(tw, "%s\t%s\t%.0f%%\n", c.Name, c.Amount, core.Finite(share))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(in.Daily) > 0 {
		fmt.Fprintln(w)
		tw = table(w)
		fmt.Fprintf(tw, "DAY\tSPENT\tPREVIOUS %s\n", strings.ToUpper(string(in.Range)))
		for _, d := range in.Daily {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Day, d.Current, d.Previous)
		}
		return tw.Flush()
	}
	return nil
}

func renderBalance(w io.Writer, b core.Balance) error {
	tw := table(w)
	fmt.Fprintf(tw, "Income\t%s\n", b.TotalIncome)
	fmt.Fprintf(tw, "Expenses\t%s\n", b.TotalExpenses)
	fmt.Fprintf(tw, "Balance\t%s\n", b.Balance)
	return tw.Flush()
}

func renderStats(w io.Writer, st services.MonthStats, now time.Time, loc *time.Location) error {
	fmt.Fprintf(w, "Statistics for %s\n\n", monthLabel(st.Period))
	tw := table(w)
	fmt.Fprintf(tw, "Spent this month\t%s\n", st.TotalSpent)
	fmt.Fprintf(tw, "Budgeted\t%s\n", st.TotalBudget)
	fmt.Fprintf(tw, "Budget usage\t%.1f%%\n", st.BudgetUsage)
	top := st.TopCategory
	if top == "" {
		top = "-"
	}
	fmt.Fprintf(tw, "Top category\t%s\n", top)
	fmt.Fprintf(tw, "Average per day\t%s\n", st.AvgDailySpending)
	fmt.Fprintf(tw, "Projected month total\t%s\n", st.Projected)
	fmt.Fprintf(tw, "Balance\t%s\n", st.Balance.Balance)
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nLast seven days")
	tw = table(w)
	local := now.In(loc)
	for i, amount := range st.LastSevenDays {
		day := local.AddDate(0, 0, i-len(st.LastSevenDays)+1)
		fmt.Fprintf(tw, "%s\t%s\n", day.Format("Mon 02"), amount)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(st.Recent) > 0 {
		fmt.Fprintln(w, "\nRecent expenses")
		return renderTransactions(w, st.Recent, true, loc)
	}
	return nil
}

func renderRecommendations(w io.Writer, recs []services.Recommendation) error {
	if len(recs) == 0 {
		_, err := fmt.Fprintln(w, "Not enough spending history for recommendations")
		return err
	}
	tw := table(w)
	fmt.Fprintln(tw, "CATEGORY\tMONTHLY AVG\tRECOMMENDED\tEXPENSES")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", r.Category, r.MonthlyAverage, r.Recommended, r.TransactionCount)
	}
	return tw.Flush()
}

func renderEvents(w io.Writer, events []core.AlertEvent) error {
	if len(events) == 0 {
		return nil
	}
	tw := table(w)
	for _, ev := range events {
		fmt.Fprintf(tw, "[%s]\t%s\t%s\n", ev.Kind, ev.Payload.Title, ev.Payload.Message)
	}
	return tw.Flush()
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func renderSettings(w io.Writer, s core.NotificationSettings) error {
	tw := table(w)
	fmt.Fprintf(tw, "Daily reminder\t%s at %s\n", onOff(s.Enabled), s.ReminderTime)
	fmt.Fprintf(tw, "Budget alerts\t%s\n", onOff(s.BudgetAlerts))
	fmt.Fprintf(tw, "Recurring alerts\t%s\n", onOff(s.RecurringAlerts))
	if s.LastReminderDate != "" {
		fmt.Fprintf(tw, "Last reminder\t%s\n", s.LastReminderDate)
	}
	return tw.Flush()
}

func renderStatus(w io.Writer, snap *services.Snapshot, loc *time.Location) error {
	tw := table(w)
	fmt.Fprintf(tw, "Cycle\t%d at %s\n", snap.Seq, snap.TakenAt.In(loc).Format("2006-01-02 15:04:05"))
	fmt.Fprintf(tw, "Expenses\t%d\n", len(snap.Expenses))
	fmt.Fprintf(tw, "Incomes\t%d\n", len(snap.Incomes))
	fmt.Fprintf(tw, "Budgets\t%d\n", len(snap.Budgets))
	fmt.Fprintf(tw, "Recurring rules\t%d\n", len(snap.Rules))
	fmt.Fprintf(tw, "Balance\t%s\n", snap.Balance.Balance)
	fmt.Fprintf(tw, "Alerts raised\t%d\n", len(snap.Events))
	if err := tw.Flush(); err != nil {
		return err
	}
	return renderEvents(w, snap.Events)
}
