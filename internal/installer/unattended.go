package installer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/twinaos/installer/internal/wizard"
)

// ErrInstallFailed is returned when provisioning reports an error.
var ErrInstallFailed = errors.New("installation failed")

// RunUnattended walks sess from its current step to completion using a.
// Progress lines are written to out as they arrive.
func RunUnattended(ctx context.Context, sess *wizard.Session, a *Answers, out io.Writer) error {
	p := &progressPrinter{out: out}
	for {
		step := sess.Current()
		switch step {
		case wizard.StepProgress:
			if err := p.follow(ctx, sess); err != nil {
				return err
			}
			continue
		case wizard.StepComplete:
			// The run may have finished before it was followed.
			p.print(sess.View().Progress)
			fmt.Fprintln(out, "Installation complete.")
			if a.Reboot {
				fmt.Fprintln(out, "Rebooting...")
				return sess.Reboot(ctx)
			}
			return nil
		}

		if err := answer(ctx, sess, step, a); err != nil {
			return fmt.Errorf("%s: %w", step.Title(), err)
		}
		if step == wizard.StepSummary {
			printSummary(out, sess.View().Summary)
		}
		if err := sess.Advance(ctx); err != nil {
			if n := sess.View().Notice; n != nil {
				return fmt.Errorf("%s: %w: %s", step.Title(), err, n.Message)
			}
			return fmt.Errorf("%s: %w", step.Title(), err)
		}
	}
}

func answer(ctx context.Context, sess *wizard.Session, step wizard.StepID, a *Answers) error {
	switch step {
	case wizard.StepLanguage:
		return sess.Select(step, a.Language)
	case wizard.StepKeyboard:
		return sess.Select(step, a.Keyboard)
	case wizard.StepTimezone:
		return sess.Select(step, a.Timezone)
	case wizard.StepNetwork:
		if a.Network == nil {
			return nil
		}
		res, err := sess.ConnectNetwork(ctx, a.Network.SSID, a.Network.Password)
		if err != nil {
			return err
		}
		if !res.Success {
			return fmt.Errorf("connecting to %s: %s", a.Network.SSID, res.Message)
		}
	case wizard.StepDisk:
		if err := sess.Select(step, a.Disk); err != nil {
			return err
		}
		sess.SetPartitioning(wizard.PartitionMode(a.Partitioning))
	case wizard.StepUser:
		fields := []struct {
			f wizard.Field
			v string
		}{
			{wizard.FieldFullName, a.User.FullName},
			{wizard.FieldUsername, a.User.Username},
			{wizard.FieldPassword, a.User.Password},
			{wizard.FieldConfirm, a.User.Password},
			{wizard.FieldHostname, a.User.Hostname},
		}
		for _, fv := range fields {
			if fv.v == "" {
				continue
			}
			if err := sess.SetField(fv.f, fv.v); err != nil {
				return err
			}
		}
	}
	return nil
}

type progressPrinter struct {
	out     io.Writer
	printed int
}

func (p *progressPrinter) print(pv wizard.ProgressView) {
	for _, line := range pv.Log[min(p.printed, len(pv.Log)):] {
		fmt.Fprintf(p.out, "[%3d%%] %s\n", pv.Percent, line)
	}
	p.printed = max(p.printed, len(pv.Log))
}

// follow prints new progress messages until the session leaves the
// provisioning step or a provisioning error is raised.
func (p *progressPrinter) follow(ctx context.Context, sess *wizard.Session) error {
	for {
		v := sess.View()
		p.print(v.Progress)

		if n := v.Notice; n != nil && n.Kind == wizard.KindProvisioning {
			return fmt.Errorf("%w: %s", ErrInstallFailed, n.Message)
		}
		if v.Step != wizard.StepProgress {
			return nil
		}

		select {
		case <-sess.Changes():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func printSummary(out io.Writer, s wizard.Summary) {
	rows := []struct{ k, v string }{
		{"Language", s.Language},
		{"Keyboard", s.Keyboard},
		{"Timezone", s.Timezone},
		{"Network", s.Network},
		{"Disk", s.Disk},
		{"Partitioning", s.Partitioning},
		{"Full name", s.FullName},
		{"Username", s.Username},
		{"Hostname", s.Hostname},
	}
	fmt.Fprintln(out, "Summary:")
	for _, r := range rows {
		fmt.Fprintf(out, "  %-13s %s\n", r.k, r.v)
	}
}
