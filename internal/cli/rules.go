package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/finalert/pkg/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage alert rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alert rules",
	Args:  cobra.NoArgs,
	RunE:  runRulesList,
}

var rulesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Create or update alert rules from a YAML file",
	Long: `Create or update alert rules from a YAML file. Rules are matched by name;
trigger statistics of existing rules are kept.`,
	Args: cobra.ExactArgs(1),
	RunE: runRulesImport,
}

var rulesEnableCmd = &cobra.Command{
	Use:   "enable <id>",
	Short: "Activate an alert rule",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setRuleActive(cmd, args[0], true) },
}

var rulesDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Deactivate an alert rule",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setRuleActive(cmd, args[0], false) },
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd, rulesImportCmd, rulesEnableCmd, rulesDisableCmd)
	rulesImportCmd.Flags().Bool("dry-run", false, "Validate the file without writing")
}

func runRulesList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := initStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	list, err := store.ListRules(cmd.Context())
	if err != nil {
		return fmt.Errorf("list rules: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No alert rules.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tNAME\tTYPE\tACTIVE\tTRIGGERS\tLAST TRIGGERED\tCONDITION\n")
	for _, r := range list {
		last := "-"
		if r.LastTriggered != nil {
			last = r.LastTriggered.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%d\t%s\t%s\n",
			r.ID, r.Name, r.AlertType, r.IsActive, r.TriggerCount, last, r.Condition.String())
	}
	return w.Flush()
}

func runRulesImport(cmd *cobra.Command, args []string) error {
	defs, err := rules.LoadRuleFile(args[0], rules.NewDefaultRegistry())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		fmt.Fprintf(out, "%d rule(s) valid.\n", len(defs))
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := initStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	for i := range defs {
		if err := store.UpsertRule(cmd.Context(), &defs[i]); err != nil {
			return fmt.Errorf("import rule %q: %w", defs[i].Name, err)
		}
		fmt.Fprintf(out, "Imported rule %d: %s (%s)\n", defs[i].ID, defs[i].Name, defs[i].AlertType)
	}
	return nil
}

func setRuleActive(cmd *cobra.Command, arg string, active bool) error {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid rule id %q", arg)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := initStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.SetRuleActive(cmd.Context(), id, active); err != nil {
		return err
	}
	state := "disabled"
	if active {
		state = "enabled"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Rule %d %s.\n", id, state)
	return nil
}
