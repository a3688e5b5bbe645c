package main

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fentz26/mealtime/internal/controlplane"
	"github.com/fentz26/mealtime/internal/models"
	"github.com/spf13/cobra"
)

var remindersCmd = &cobra.Command{
	Use:     "reminders",
	Aliases: []string{"r"},
	Short:   "Inspect and answer reminders",
}

var remindersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active reminders",
	RunE:  runRemindersList,
}

var remindersHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List past reminders, newest first",
	RunE:  runRemindersHistory,
}

var remindersAckCmd = &cobra.Command{
	Use:   "ack [reminder-id] [eaten|snooze|skip|acknowledge]",
	Short: "Answer a reminder",
	Long: `Answer a reminder. The id may be any unique prefix of an active reminder id.
Snooze re-arms the reminder after --minutes (default: reminders.snooze_minutes).`,
	Args: cobra.ExactArgs(2),
	RunE: runRemindersAck,
}

var remindersLogCmd = &cobra.Command{
	Use:   "log [reminder-id]",
	Short: "Show the audit log, optionally for one reminder",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRemindersLog,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon health, missed meals and the next reminder",
	RunE:  runStatus,
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Re-read the config file and re-arm reminders",
	RunE:  runApply,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Disarm every active reminder",
	RunE:  runCancel,
}

var (
	reminderStatus string
	historyLimit   int
	snoozeMinutes  int
	logLimit       int
)

func init() {
	remindersCmd.AddCommand(remindersListCmd, remindersHistoryCmd, remindersAckCmd, remindersLogCmd)

	remindersListCmd.Flags().StringVar(&reminderStatus, "status", "", "Filter by status (scheduled, sent, escalated, ...)")
	remindersHistoryCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum entries to show (0 for all)")
	remindersAckCmd.Flags().IntVar(&snoozeMinutes, "minutes", 0, "Snooze duration in minutes")
	remindersLogCmd.Flags().IntVar(&logLimit, "limit", 50, "Maximum entries to show (0 for all)")
}

func runRemindersList(cmd *cobra.Command, args []string) error {
	path := "/reminders"
	if reminderStatus != "" {
		path += "?status=" + url.QueryEscape(reminderStatus)
	}

	var reminders []models.Reminder
	if err := apiGet(path, &reminders); err != nil {
		return err
	}
	if len(reminders) == 0 {
		fmt.Println("No active reminders")
		return nil
	}
	printReminders(reminders)
	return nil
}

func runRemindersHistory(cmd *cobra.Command, args []string) error {
	var history []models.Reminder
	if err := apiGet("/history?limit="+strconv.Itoa(historyLimit), &history); err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Println("No history yet")
		return nil
	}
	printReminders(history)
	return nil
}

func printReminders(reminders []models.Reminder) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMEAL\tPHASE\tWHEN\tSTATUS\tSNOOZES")
	for _, r := range reminders {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
			truncateID(r.ID), r.Meal.DisplayName(), r.Phase,
			r.ScheduledTime.Local().Format("Mon Jan 02 15:04"), r.Status, r.SnoozeCount)
	}
	w.Flush()
}

func runRemindersAck(cmd *cobra.Command, args []string) error {
	action, ok := models.ParseAckAction(args[1])
	if !ok {
		return fmt.Errorf("unknown action %q (want eaten, snooze, skip or acknowledge)", args[1])
	}
	id, err := resolveID(args[0])
	if err != nil {
		return err
	}

	body := map[string]interface{}{"action": action}
	if snoozeMinutes > 0 {
		body["snooze_minutes"] = snoozeMinutes
	}
	var result map[string]string
	if err := apiPost("/reminders/"+url.PathEscape(id)+"/ack", body, &result); err != nil {
		return err
	}

	fmt.Printf("Reminder %s: %s (%s)\n", truncateID(id), action, result["status"])
	return nil
}

// resolveID expands a unique prefix of an active reminder id. Unknown
// prefixes are passed through; the daemon ignores ids it does not know.
func resolveID(prefix string) (string, error) {
	var reminders []models.Reminder
	if err := apiGet("/reminders", &reminders); err != nil {
		return "", err
	}

	var matches []string
	for _, r := range reminders {
		if r.ID == prefix {
			return r.ID, nil
		}
		if strings.HasPrefix(r.ID, prefix) {
			matches = append(matches, r.ID)
		}
	}
	switch len(matches) {
	case 0:
		return prefix, nil
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("reminder id %q is ambiguous (%d matches)", prefix, len(matches))
	}
}

func runRemindersLog(cmd *cobra.Command, args []string) error {
	q := url.Values{}
	if len(args) == 1 {
		id, err := resolveID(args[0])
		if err != nil {
			return err
		}
		q.Set("reminder_id", id)
	}
	q.Set("limit", strconv.Itoa(logLimit))

	var trs []models.Transition
	if err := apiGet("/log?"+q.Encode(), &trs); err != nil {
		return err
	}
	if len(trs) == 0 {
		fmt.Println("No audit entries")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tACTION\tOUTCOME\tREMINDER\tDETAILS")
	for _, t := range trs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			t.Timestamp.Local().Format("Jan 02 15:04:05"), t.Action, t.Outcome,
			truncateID(t.ReminderID), truncate(t.Details, 50))
	}
	w.Flush()
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	health, err := CheckHealth()
	if err != nil {
		return err
	}

	var st controlplane.Status
	if err := apiGet("/status", &st); err != nil {
		return err
	}

	fmt.Printf("Daemon:       ok (version %s, db %s)\n", health.Version, health.DB)
	fmt.Printf("Missed meals: %d\n", st.MissedMeals)
	fmt.Printf("Active:       %d\n", st.Active)
	if st.Next != nil {
		in := time.Until(st.Next.ScheduledTime).Round(time.Minute)
		fmt.Printf("Next:         %s %s at %s (in %s)\n",
			st.Next.Meal.DisplayName(), st.Next.Phase, st.Next.ScheduledTime.Local().Format("Mon 15:04"), in)
	}
	return nil
}

func runApply(cmd *cobra.Command, args []string) error {
	var result struct {
		Armed   int    `json:"armed"`
		Warning string `json:"warning"`
	}
	if err := apiPost("/apply", nil, &result); err != nil {
		return err
	}

	fmt.Printf("Armed %d reminders\n", result.Armed)
	if result.Warning != "" {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", result.Warning)
	}
	return nil
}

func runCancel(cmd *cobra.Command, args []string) error {
	if err := apiPost("/cancel", nil, nil); err != nil {
		return err
	}
	fmt.Println("Cancelled all reminders")
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func truncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
