// Command servocal edits servo calibration files and drives a servo through
// them from the bench.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"servopi/actuator"
	"servopi/calibration"
)

const defaultFile = "servo_calibration.json"

// options holds the persistent flags shared by every subcommand.
type options struct {
	file      string
	driver    string
	pin       int
	frequency float64
	settle    time.Duration
	logLevel  string

	logger *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:          "servocal",
		Short:        "Inspect, edit and exercise servo calibration tables",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(o.logLevel)); err != nil {
				return fmt.Errorf("invalid --log-level %q", o.logLevel)
			}
			o.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&o.file, "file", "f", defaultFile, "calibration file")
	pf.StringVar(&o.driver, "driver", actuator.DriverSim, "actuator driver: gpio, pca9685, maestro or sim")
	pf.IntVar(&o.pin, "pin", 13, "BCM pin (gpio) or channel (pca9685, maestro)")
	pf.Float64Var(&o.frequency, "frequency", 50, "PWM frequency in Hz")
	pf.DurationVar(&o.settle, "settle", 800*time.Millisecond, "wait after each move")
	pf.StringVar(&o.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	root.AddCommand(
		newInitCmd(o),
		newShowCmd(o),
		newSetCmd(o),
		newRmCmd(o),
		newInterpCmd(o),
		newMergeCmd(o),
		newSweepCmd(o),
		newGotoCmd(o),
		newTryCmd(o),
	)
	return root
}

func newInitCmd(o *options) *cobra.Command {
	var (
		reference bool
		force     bool
		stamped   bool
		notes     string
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a new calibration file seeded with standard duty cycles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := o.file
			if stamped {
				path = calibration.DefaultFilename(time.Now())
			}
			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s exists (use --force to overwrite)", path)
				}
			}
			var tbl *calibration.Table
			if reference {
				tbl = calibration.Reference()
			} else {
				tbl = calibration.NewTable(nil)
				for _, a := range calibration.StandardAngles() {
					tbl.Set(a, calibration.StandardDuty(a))
				}
			}
			if err := calibration.NewFile(tbl, o.pin, o.frequency, notes).Save(path); err != nil {
				return err
			}
			o.logger.Info("calibration written", "file", path, "points", tbl.Len())
			return nil
		},
	}
	cmd.Flags().BoolVar(&reference, "reference", false, "seed with the bench reference table instead of the standard curve")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.Flags().BoolVar(&stamped, "timestamped", false, "write to servo_calibration_YYYYMMDD_HHMMSS.json instead of --file")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes stored in the file")
	return cmd
}

func newShowCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the calibration table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := o.load()
			if err != nil {
				return err
			}
			tbl := f.Table()
			adapter := calibration.AdapterFor(tbl).WithFrequency(f.FrequencyHz)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "file: %s\npin: %d  frequency: %g Hz  saved: %s\n",
				o.file, f.Pin, f.FrequencyHz, f.Timestamp.Format(time.RFC3339))
			if f.Notes != "" {
				fmt.Fprintf(out, "notes: %s\n", f.Notes)
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(tw, "angle\tduty %\tpulse ms\tnormalized\t")
			for _, p := range f.Points {
				fmt.Fprintf(tw, "%s\t%.2f\t%.3f\t%+.3f\t\n",
					calibration.FormatPosition(p.Position), p.Value,
					adapter.PulseWidth(p.Value), adapter.Normalized(p.Value))
			}
			return tw.Flush()
		},
	}
}

func newSetCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "set <angle> <duty>",
		Short: "Add or replace one calibration point",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			angle, err := parseFloat("angle", args[0])
			if err != nil {
				return err
			}
			duty, err := parseFloat("duty", args[1])
			if err != nil {
				return err
			}
			if err := calibration.DefaultLimits.Check(calibration.Point{Position: angle, Value: duty}); err != nil {
				return err
			}
			return o.edit(func(tbl *calibration.Table) error {
				tbl.Set(angle, duty)
				o.logger.Info("point set", "angle", angle, "duty", duty)
				return nil
			})
		},
	}
}

func newRmCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <angle>",
		Short: "Remove one calibration point",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			angle, err := parseFloat("angle", args[0])
			if err != nil {
				return err
			}
			return o.edit(func(tbl *calibration.Table) error {
				ok, err := tbl.Remove(angle)
				if !ok {
					return fmt.Errorf("no point at %s°", calibration.FormatPosition(angle))
				}
				if err != nil {
					return fmt.Errorf("refusing to remove the last point: %w", err)
				}
				o.logger.Info("point removed", "angle", angle)
				return nil
			})
		},
	}
}

func newInterpCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "interp <angle>...",
		Short: "Print the interpolated duty cycle for each angle",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := o.load()
			if err != nil {
				return err
			}
			tbl := f.Table()
			for _, arg := range args {
				angle, err := parseFloat("angle", arg)
				if err != nil {
					return err
				}
				duty := tbl.Interpolate(angle)
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%.4f\t%.3f ms\n",
					calibration.FormatPosition(angle), duty, calibration.DutyToPulseWidth(duty, f.FrequencyHz))
			}
			return nil
		},
	}
}

func newMergeCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "merge <updates.yaml|updates.json>",
		Short: "Apply a batch of angle: duty updates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			updates, err := calibration.LoadUpdates(args[0], calibration.DefaultLimits)
			if err != nil {
				return err
			}
			return o.edit(func(tbl *calibration.Table) error {
				tbl.Merge(updates)
				o.logger.Info("updates merged", "from", args[0], "points", len(updates))
				return nil
			})
		},
	}
}

func newSweepCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Drive the servo through every calibration point",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := o.load()
			if err != nil {
				return err
			}
			return o.drive(cmd.Context(), func(out actuator.Actuator) error {
				for _, p := range f.Points {
					if err := o.move(cmd, out, p.Position, p.Value); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newGotoCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "goto <angle>",
		Short: "Move the servo to one angle using the calibration table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			angle, err := parseFloat("angle", args[0])
			if err != nil {
				return err
			}
			if err := calibration.DefaultLimits.CheckPosition(angle); err != nil {
				return err
			}
			f, err := o.load()
			if err != nil {
				return err
			}
			duty := f.Table().Interpolate(angle)
			return o.drive(cmd.Context(), func(out actuator.Actuator) error {
				return o.move(cmd, out, angle, duty)
			})
		},
	}
}

func newTryCmd(o *options) *cobra.Command {
	var saveAs float64
	cmd := &cobra.Command{
		Use:   "try <duty>",
		Short: "Drive a raw duty cycle, bypassing the table, to find the value for an angle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			duty, err := parseFloat("duty", args[0])
			if err != nil {
				return err
			}
			if err := calibration.DefaultLimits.CheckValue(duty); err != nil {
				return err
			}
			store := cmd.Flags().Changed("save-as")
			if store {
				if err := calibration.DefaultLimits.CheckPosition(saveAs); err != nil {
					return err
				}
			}
			err = o.drive(cmd.Context(), func(out actuator.Actuator) error {
				if err := out.Apply(duty); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "duty %.2f%% (%.3f ms)\n", duty, calibration.DutyToPulseWidth(duty, o.frequency))
				return sleepCtx(cmd.Context(), o.settle)
			})
			if err != nil || !store {
				return err
			}
			return o.edit(func(tbl *calibration.Table) error {
				tbl.Set(saveAs, duty)
				o.logger.Info("point set", "angle", saveAs, "duty", duty)
				return nil
			})
		},
	}
	cmd.Flags().Float64Var(&saveAs, "save-as", 0, "after driving, store the duty at this angle")
	return cmd
}

func (o *options) load() (calibration.File, error) {
	return calibration.LoadFile(o.file, calibration.DefaultLimits)
}

// edit loads the file, applies fn to its table and writes it back with a
// fresh timestamp.
func (o *options) edit(fn func(*calibration.Table) error) error {
	f, err := o.load()
	if err != nil {
		return err
	}
	tbl := f.Table()
	if err := fn(tbl); err != nil {
		return err
	}
	return calibration.NewFile(tbl, f.Pin, f.FrequencyHz, f.Notes).Save(o.file)
}

// drive opens the configured actuator, runs fn and releases it.
func (o *options) drive(ctx context.Context, fn func(actuator.Actuator) error) error {
	out, err := actuator.Open(actuator.Config{Driver: o.driver, Pin: o.pin, FrequencyHz: o.frequency})
	if err != nil {
		return err
	}
	o.logger.Debug("actuator open", "driver", o.driver, "pin", o.pin, "frequency_hz", o.frequency)
	err = fn(out)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return err
}

func (o *options) move(cmd *cobra.Command, out actuator.Actuator, angle, duty float64) error {
	if err := out.Apply(duty); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s° -> %.2f%% (%.3f ms)\n",
		calibration.FormatPosition(angle), duty, calibration.DutyToPulseWidth(duty, o.frequency))
	return sleepCtx(cmd.Context(), o.settle)
}

func parseFloat(name, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return v, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
