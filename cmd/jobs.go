package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/study-assistant/internal/jobs"
	"github.com/MimeLyc/study-assistant/internal/render"
	"github.com/MimeLyc/study-assistant/internal/transfer"
	"github.com/MimeLyc/study-assistant/pkg/file"
)

func newSubmitCmd(current func() *app) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "submit FILE...",
		Short: "Upload PDF files as one job",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			id, err := a.submit(cmd.Context(), args)
			if err != nil {
				return a.fail(err)
			}
			fmt.Fprintln(a.stdout, id)
			if !wait {
				return nil
			}
			return a.wait(cmd.Context(), id)
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "poll the job and print the result")
	return cmd
}

func newWaitCmd(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:     "wait [JOB_ID]",
		Aliases: []string{"show"},
		Short:   "Poll a job until it is done and print the result",
		Long:    "Poll a job until it is done and print the result. Without JOB_ID the last submitted job is used.",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			id, err := a.jobID(cmd.Context(), args)
			if err != nil {
				return a.fail(err)
			}
			return a.wait(cmd.Context(), id)
		},
	}
}

func newStatusCmd(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status [JOB_ID]",
		Short: "Query the status of a job once",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			id, err := a.jobID(cmd.Context(), args)
			if err != nil {
				return a.fail(err)
			}
			job, err := a.backend.Status(cmd.Context(), id)
			if err != nil {
				return a.fail(err)
			}
			fmt.Fprintln(a.stdout, render.JobLine(id, job.Status, job.ErrorMessage, a.labels(nil)))
			return nil
		},
	}
}

func newListCmd(current func() *app) *cobra.Command {
	var opts transfer.ListOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List processed documents known to the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := current()
			list, err := a.backend.List(cmd.Context(), opts)
			if err != nil {
				return a.fail(err)
			}
			labels := a.labels(nil)
			for _, s := range list.Summaries {
				detail := strings.Join(s.FilesNames, ", ")
				if s.ErrorMessage != "" {
					detail = strings.TrimSpace(detail + " " + s.ErrorMessage)
				}
				fmt.Fprintln(a.stdout, render.JobLine(s.UUID, s.Status, detail, labels))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", transfer.DefaultListLimit, "maximum number of documents")
	cmd.Flags().StringVar(&opts.StatusFilter, "status", "", "only documents with this status (processing, finished, error)")
	return cmd
}

func newRecentCmd(current func() *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List jobs tracked on this machine, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := current()
			entries, err := a.store.Recent(cmd.Context(), jobs.TrackedJobPrefix, limit)
			if err != nil {
				return err
			}
			labels := a.labels(nil)
			for _, entry := range entries {
				id := strings.TrimPrefix(entry.Key, jobs.TrackedJobPrefix)
				job, ok, err := jobs.LoadTracked(cmd.Context(), a.store, id)
				if err != nil || !ok {
					continue
				}
				detail := job.Source + " " + entry.UpdatedAt.Local().Format(time.DateTime)
				fmt.Fprintln(a.stdout, render.JobLine(id, job.Status, detail, labels))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of jobs")
	return cmd
}

func newDeleteCmd(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete JOB_ID",
		Short: "Delete a processed document from the backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			ctx := cmd.Context()
			id := args[0]
			ack, err := a.backend.Delete(ctx, id)
			if err != nil {
				return a.fail(err)
			}
			if err := a.store.Delete(ctx, jobs.TrackedJobPrefix+id); err != nil {
				return err
			}
			if last, err := jobs.LastSubmitted(ctx, a.store); err == nil && last == id {
				if err := a.store.Delete(ctx, jobs.CurrentJobKey); err != nil {
					return err
				}
			}
			fmt.Fprintln(a.stdout, ack)
			return nil
		},
	}
}

func newExportCmd(current func() *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export [JOB_ID]",
		Short: "Write the result of a finished job to an Excel workbook",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			id, err := a.jobID(cmd.Context(), args)
			if err != nil {
				return a.fail(err)
			}
			job, err := a.backend.Status(cmd.Context(), id)
			if err != nil {
				return a.fail(err)
			}
			switch job.Status {
			case jobs.StatusFinished:
			case jobs.StatusError:
				return a.fail(&jobs.ProcessingError{JobID: id, Message: job.ErrorMessage})
			default:
				return fmt.Errorf("job %s is still %s", id, job.Status)
			}

			result := job.Result
			if result == nil {
				result = &jobs.Result{}
			}
			data, err := render.ExportXLSX(result, a.labels(result))
			if err != nil {
				return err
			}
			if output == "" {
				output = file.SafeBase("study-" + id + ".xlsx")
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "workbook path (default study-<id>.xlsx)")
	return cmd
}

// jobID returns the explicit argument or the last submitted job.
func (a *app) jobID(ctx context.Context, args []string) (string, error) {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return strings.TrimSpace(args[0]), nil
	}
	return jobs.LastSubmitted(ctx, a.store)
}

// submit uploads paths as one job and records it as the current job.
func (a *app) submit(ctx context.Context, paths []string) (string, error) {
	if len(paths) == 0 {
		return "", transfer.ErrNoFiles
	}
	files, err := transfer.LoadFiles(ctx, paths...)
	if err != nil {
		return "", err
	}
	receipt, err := a.backend.Submit(ctx, files)
	if err != nil {
		return "", err
	}

	now := time.Now()
	tracked := &jobs.TrackedJob{
		Job:       jobs.Job{ID: receipt.UUID, Status: jobs.StatusPending, CreatedAt: receipt.CreatedAt},
		Source:    jobs.SourceCLI,
		StartedAt: now,
		CheckedAt: now,
	}
	if err := jobs.SaveTracked(ctx, a.store, tracked); err != nil {
		return "", err
	}
	if err := jobs.RememberSubmitted(ctx, a.store, receipt.UUID); err != nil {
		return "", err
	}
	return receipt.UUID, nil
}

// wait polls id to a terminal status, prints each status change to stderr
// and the rendered result to stdout.
func (a *app) wait(ctx context.Context, id string) error {
	labels := a.labels(nil)
	poller := a.poller(jobs.WithObserver(func(job jobs.Job) {
		fmt.Fprintln(a.stderr, render.JobLine(job.ID, job.Status, "", labels))
	}))

	out := poller.Poll(ctx, id)
	a.record(ctx, id, out)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if !out.Succeeded() {
		return a.fail(out.Err)
	}
	return render.Text(a.stdout, out.Job.Result, a.labels(out.Job.Result))
}

// record updates the local snapshot of id with a poll outcome.
func (a *app) record(ctx context.Context, id string, out jobs.Outcome) {
	// a cancelled wait leaves the job as it was
	if ctx.Err() != nil {
		return
	}
	tracked, ok, err := jobs.LoadTracked(ctx, a.store, id)
	if err != nil || !ok {
		tracked = &jobs.TrackedJob{Job: jobs.Job{ID: id}, Source: jobs.SourceCLI, StartedAt: time.Now()}
	}
	if out.Job != nil {
		tracked.Job = *out.Job
	}
	tracked.Notice = jobs.NoticeFor(out.Err)
	if out.Err != nil {
		tracked.Status = jobs.StatusError
		if tracked.ErrorMessage == "" {
			tracked.ErrorMessage = out.Err.Error()
		}
	}
	tracked.CheckedAt = time.Now()
	if err := jobs.SaveTracked(ctx, a.store, tracked); err != nil {
		fmt.Fprintln(a.stderr, err)
	}
}
