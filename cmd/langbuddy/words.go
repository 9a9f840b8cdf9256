package main

import (
	"fmt"
	"strconv"

	"github.com/markkurossi/tabulate"
	"github.com/spf13/cobra"

	"github.com/langbuddy/langbuddy/pkg/db"
	"github.com/langbuddy/langbuddy/pkg/keyset"
	"github.com/langbuddy/langbuddy/pkg/vocab"
)

func newWordBankCmd(a *app) *cobra.Command {
	var (
		tier   int
		limit  int
		cursor string
	)
	cmd := &cobra.Command{
		Use:   "wordbank",
		Short: "List dictionary words with the user's mastery",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			if limit <= 0 {
				limit = a.cfg.WordBank.DefaultLimit
			}
			q := db.WordQuery{Limit: min(limit, a.cfg.WordBank.MaxLimit), After: keyset.DecodePtr(cursor)}
			if tier != 0 {
				t := vocab.Tier(tier)
				if !t.Valid() {
					return fmt.Errorf("tier %d: %w", tier, vocab.ErrInvalidTier)
				}
				q.Tier = &t
			}
			page, err := a.service().WordBank(cmd.Context(), userFlag(cmd), q)
			if err != nil {
				return err
			}

			tab := tabulate.New(tabulate.UnicodeLight)
			tab.Header("ID").SetAlign(tabulate.MR)
			tab.Header("Word")
			tab.Header("Tier").SetAlign(tabulate.MR)
			tab.Header("Meaning")
			tab.Header("Mastery").SetAlign(tabulate.MR)
			for _, it := range page.Items {
				row := tab.Row()
				row.Column(strconv.FormatInt(it.ID, 10))
				row.Column(it.BaseForm)
				row.Column(strconv.Itoa(int(it.Tier)))
				row.Column(it.Meaning)
				row.Column(strconv.Itoa(it.Mastery))
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, tab.String())
			if page.NextCursor != nil {
				fmt.Fprintf(out, "Next page: --cursor %s\n", *page.NextCursor)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&tier, "tier", 0, "Only list words of this tier")
	cmd.Flags().IntVar(&limit, "limit", 0, "Page size")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Continue after this cursor")
	return cmd
}

func newQuizCmd(a *app) *cobra.Command {
	var (
		articleID int64
		wrong     bool
	)
	cmd := &cobra.Command{
		Use:   "quiz <word-id>",
		Short: "Record a word quiz answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wordID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid word id %q", args[0])
			}
			if err := a.open(); err != nil {
				return err
			}
			res, err := a.service().AnswerQuiz(cmd.Context(), userFlag(cmd), articleID, wordID, !wrong)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Word %d mastery: %d\n", wordID, res.Mastery)
			return nil
		},
	}
	cmd.Flags().Int64Var(&articleID, "article", 0, "Article the word was quizzed in")
	cmd.Flags().BoolVar(&wrong, "wrong", false, "Record an incorrect answer")
	return cmd
}

func newTierCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tier [level]",
		Short: "Show or set the user's tier",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			svc := a.service()
			user := userFlag(cmd)
			if len(args) == 1 {
				t, err := vocab.ParseTier(args[0])
				if err != nil {
					return err
				}
				if err := svc.SetTier(cmd.Context(), user, t); err != nil {
					return err
				}
			}
			t, err := svc.Tier(cmd.Context(), user)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tier for %s: %d\n", user, t)
			return nil
		},
	}
}
