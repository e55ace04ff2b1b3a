package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/argos/presence"
)

func newLearnCommand(ctx *commandContext) *cobra.Command {
	var req presence.LearnRequest
	var selection string

	cmd := &cobra.Command{
		Use:   "learn",
		Short: "Learn detection methods for a site from real and fake identities",
		Long: "Probes the URL template with every real and fake identity, derives candidate\n" +
			"methods, shows which of them separate the two groups, and appends the selected\n" +
			"ones to the catalog. The template must contain {user} or {usuario}.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := ctx.openSession(cmd)
			if err != nil {
				return err
			}
			defer app.close()
			svc := app.svc

			req.Real = splitList(req.Real)
			req.Fake = splitList(req.Fake)
			req.Keywords = splitList(req.Keywords)

			sess, err := svc.Learner.Learn(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d real and %d fake samples (rendered channel: %v)\n",
				sess.Site, sess.RealSampled, sess.FakeSampled, sess.Rendering)
			if err := presence.RenderReview(out, sess.Candidates); err != nil {
				return err
			}

			if !cmd.Flags().Changed("select") {
				selection, err = prompt(cmd.InOrStdin(), out,
					"Methods to save (e.g. 1,3,5-7, good, all; empty for none): ")
				if err != nil {
					return err
				}
			}
			selected, err := presence.ParseSelection(selection, sess.Candidates)
			if err != nil {
				return err
			}
			if len(selected) == 0 {
				fmt.Fprintln(out, "nothing saved")
				return nil
			}
			start := time.Now()
			added, err := svc.Learner.Commit(cmd.Context(), selected)
			ids := make([]int64, len(added))
			for i, e := range added {
				ids[i] = e.ID
			}
			app.record("commit", map[string]any{"site": sess.Site, "url_template": sess.URLTemplate}, map[string]any{"ids": ids}, err, start)
			if err != nil {
				return err
			}
			shown := make([]string, len(ids))
			for i, id := range ids {
				shown[i] = fmt.Sprint(id)
			}
			fmt.Fprintf(out, "saved %d method(s) for %s: ids %s\n", len(added), sess.Site, strings.Join(shown, ", "))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&req.Site, "site", "s", "", "Site name (e.g. instagram)")
	f.StringVarP(&req.URLTemplate, "template", "t", "", "Profile URL template with {user} or {usuario}")
	f.StringSliceVarP(&req.Real, "real", "r", nil, "Identities known to exist on the site")
	f.StringSliceVarP(&req.Fake, "fake", "f", nil, "Identities known not to exist on the site")
	f.StringSliceVarP(&req.Keywords, "keywords", "k", nil, "Words expected on real profile pages")
	f.StringVar(&selection, "select", "", "Methods to save without prompting (numbers, ranges, good, all, none)")
	_ = cmd.MarkFlagRequired("site")
	_ = cmd.MarkFlagRequired("template")
	_ = cmd.MarkFlagRequired("real")
	return cmd
}

// prompt writes question and reads one line. EOF reads as an empty answer.
func prompt(in io.Reader, out io.Writer, question string) (string, error) {
	fmt.Fprint(out, question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
