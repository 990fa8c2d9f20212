package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gorm.io/datatypes"

	"github.com/ogulcanaydogan/finalert/pkg/model"
)

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"notif"},
	Short:   "Read and manage user notifications",
}

var notificationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notifications visible to a user",
	Args:  cobra.NoArgs,
	RunE:  runNotificationsList,
}

var notificationsCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Show the unread notification count for a user",
	Args:  cobra.NoArgs,
	RunE:  runNotificationsCount,
}

var notificationsReadCmd = &cobra.Command{
	Use:   "read <id>",
	Short: "Mark a notification as read",
	Args:  cobra.ExactArgs(1),
	RunE:  runNotificationsRead,
}

var notificationsReadAllCmd = &cobra.Command{
	Use:   "read-all",
	Short: "Mark every notification visible to a user as read",
	Args:  cobra.NoArgs,
	RunE:  runNotificationsReadAll,
}

var notificationsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete expired notifications",
	Args:  cobra.NoArgs,
	RunE:  runNotificationsCleanup,
}

var notificationsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a notification",
	Args:  cobra.NoArgs,
	RunE:  runNotificationsCreate,
}

func init() {
	rootCmd.AddCommand(notificationsCmd)
	notificationsCmd.AddCommand(notificationsListCmd, notificationsCountCmd, notificationsReadCmd,
		notificationsReadAllCmd, notificationsCleanupCmd, notificationsCreateCmd)

	for _, c := range []*cobra.Command{notificationsListCmd, notificationsCountCmd, notificationsReadCmd, notificationsReadAllCmd} {
		c.Flags().Int64P("user", "u", 0, "User ID")
		_ = c.MarkFlagRequired("user")
	}
	notificationsListCmd.Flags().Bool("unread", false, "Only show unread notifications")
	notificationsListCmd.Flags().IntP("limit", "n", 0, "Maximum number of notifications (default 50)")

	notificationsCreateCmd.Flags().Int64P("user", "u", 0, "Recipient user ID (0 broadcasts to everyone)")
	notificationsCreateCmd.Flags().StringP("type", "t", string(model.TypeInfo), "Type (alert, reminder, info, system)")
	notificationsCreateCmd.Flags().StringP("category", "c", "system", "Category")
	notificationsCreateCmd.Flags().String("title", "", "Title")
	notificationsCreateCmd.Flags().StringP("message", "m", "", "Message")
	notificationsCreateCmd.Flags().StringP("priority", "p", string(model.PriorityNormal), "Priority (low, normal, high)")
	notificationsCreateCmd.Flags().String("action-url", "", "Link shown with the notification")
	notificationsCreateCmd.Flags().String("action-label", "", "Label for the link")
	notificationsCreateCmd.Flags().Duration("expires-in", 0, "Expire the notification after this duration")
	_ = notificationsCreateCmd.MarkFlagRequired("title")
	_ = notificationsCreateCmd.MarkFlagRequired("message")
}

func runNotificationsList(cmd *cobra.Command, _ []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	userID, _ := cmd.Flags().GetInt64("user")
	unread, _ := cmd.Flags().GetBool("unread")
	limit, _ := cmd.Flags().GetInt("limit")

	list, err := a.manager.ListForUser(cmd.Context(), userID, unread, limit)
	if err != nil {
		return fmt.Errorf("list notifications: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No notifications.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tPRIORITY\tTYPE\tCATEGORY\tTITLE\tREAD\tCREATED\n")
	for _, n := range list {
		read := ""
		if n.IsRead {
			read = "yes"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			n.ID, colorPriority(n.Priority), n.Type, n.Category, n.Title, read,
			n.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runNotificationsCount(cmd *cobra.Command, _ []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	userID, _ := cmd.Flags().GetInt64("user")
	fmt.Fprintf(cmd.OutOrStdout(), "%d\n", a.manager.UnreadCount(cmd.Context(), userID))
	return nil
}

func runNotificationsRead(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid notification id %q", args[0])
	}

	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	userID, _ := cmd.Flags().GetInt64("user")
	if err := a.manager.MarkRead(cmd.Context(), id, userID); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Notification %d marked as read.\n", id)
	return nil
}

func runNotificationsReadAll(cmd *cobra.Command, _ []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	userID, _ := cmd.Flags().GetInt64("user")
	n, err := a.manager.MarkAllRead(cmd.Context(), userID)
	if err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d notification(s) marked as read.\n", n)
	return nil
}

func runNotificationsCleanup(cmd *cobra.Command, _ []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "%d expired notification(s) deleted.\n", a.manager.CleanupExpired(cmd.Context()))
	return nil
}

func runNotificationsCreate(cmd *cobra.Command, _ []string) error {
	userID, _ := cmd.Flags().GetInt64("user")
	typ, _ := cmd.Flags().GetString("type")
	category, _ := cmd.Flags().GetString("category")
	title, _ := cmd.Flags().GetString("title")
	message, _ := cmd.Flags().GetString("message")
	priority, _ := cmd.Flags().GetString("priority")
	actionURL, _ := cmd.Flags().GetString("action-url")
	actionLabel, _ := cmd.Flags().GetString("action-label")
	expiresIn, _ := cmd.Flags().GetDuration("expires-in")

	n := &model.Notification{
		Type:        model.NotificationType(typ),
		Category:    category,
		Title:       title,
		Message:     message,
		Priority:    model.Priority(priority),
		ActionURL:   actionURL,
		ActionLabel: actionLabel,
		Metadata:    datatypes.JSON(`{"source":"cli"}`),
	}
	if userID > 0 {
		n.UserID = &userID
	}
	if expiresIn > 0 {
		expires := time.Now().UTC().Add(expiresIn)
		n.ExpiresAt = &expires
	}

	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := a.manager.CreateNotification(cmd.Context(), n)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Notification %d created.\n", id)
	return nil
}

func colorPriority(p model.Priority) string {
	switch p {
	case model.PriorityHigh:
		return color.New(color.FgRed, color.Bold).Sprint(p)
	case model.PriorityNormal:
		return color.New(color.FgYellow).Sprint(p)
	default:
		return color.New(color.FgGreen).Sprint(p)
	}
}
