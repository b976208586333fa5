package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/api"
	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/model"
	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/notify"
	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/profile"
	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/slots"
	"github.com/spf13/cobra"
)

type appFunc func() *app

func loginCmd(get appFunc) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			if password == "" {
				password = os.Getenv("PATIENTCTL_PASSWORD")
			}
			token, err := a.client.Login(cmd.Context(), email, password)
			if err != nil {
				notify.Error(cmd.Context(), a.notifier, "login", api.Message(err))
				return err
			}
			if err := a.session.Set(cmd.Context(), token); err != nil {
				return fmt.Errorf("save session: %w", err)
			}
			who := email
			if p, ok := a.profile.Profile(); ok && p.Name != "" {
				who = p.Name
			}
			notify.Success(cmd.Context(), a.notifier, "login", "Signed in as "+who)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (or PATIENTCTL_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func registerCmd(get appFunc) *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			if password == "" {
				password = os.Getenv("PATIENTCTL_PASSWORD")
			}
			token, err := a.client.Register(cmd.Context(), name, email, password)
			if err != nil {
				notify.Error(cmd.Context(), a.notifier, "register", api.Message(err))
				return err
			}
			if err := a.session.Set(cmd.Context(), token); err != nil {
				return fmt.Errorf("save session: %w", err)
			}
			notify.Success(cmd.Context(), a.notifier, "register", "Account created")
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (or PATIENTCTL_PASSWORD)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func logoutCmd(get appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			if err := a.session.Clear(cmd.Context()); err != nil {
				return err
			}
			notify.Success(cmd.Context(), a.notifier, "logout", "Signed out")
			return nil
		},
	}
}

func doctorsCmd(get appFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctors",
		Short: "List and inspect doctors",
	}
	var speciality string
	list := &cobra.Command{
		Use:   "list",
		Short: "List doctors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			if _, err := a.dir.Refresh(cmd.Context()); err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSPECIALITY\tEXPERIENCE\tFEE\tAVAILABLE")
			for _, d := range a.dir.List(speciality) {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					d.ID, d.Name, d.Speciality, d.Experience, model.FormatFee(d.Fees, a.currency), yesNo(d.Available))
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVar(&speciality, "speciality", "", "only doctors with this speciality")

	show := &cobra.Command{
		Use:   "show <doctor-id>",
		Short: "Show one doctor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			d, err := lookupDoctor(cmd.Context(), a, args[0])
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "Name:\t%s\n", d.Name)
			fmt.Fprintf(tw, "Degree:\t%s - %s\n", d.Degree, d.Speciality)
			fmt.Fprintf(tw, "Experience:\t%s\n", d.Experience)
			fmt.Fprintf(tw, "Fee:\t%s\n", model.FormatFee(d.Fees, a.currency))
			fmt.Fprintf(tw, "Verified:\t%s\n", yesNo(d.Verified))
			fmt.Fprintf(tw, "Available:\t%s\n", yesNo(d.Available))
			if addr := joinAddress(d.Address); addr != "" {
				fmt.Fprintf(tw, "Address:\t%s\n", addr)
			}
			if d.About != "" {
				fmt.Fprintf(tw, "About:\t%s\n", d.About)
			}
			return tw.Flush()
		},
	}
	cmd.AddCommand(list, show)
	return cmd
}

func lookupDoctor(ctx context.Context, a *app, id string) (model.Doctor, error) {
	if _, err := a.dir.Refresh(ctx); err != nil {
		return model.Doctor{}, err
	}
	d, err := a.dir.FindByID(id)
	if err != nil {
		return model.Doctor{}, fmt.Errorf("%s: %w", id, err)
	}
	return d, nil
}

func parseAt(a *app, raw string) (time.Time, error) {
	if raw == "" {
		return a.now().In(a.loc), nil
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("--at must be RFC3339: %w", err)
	}
	return at.In(a.loc), nil
}

func slotsCmd(get appFunc) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "slots <doctor-id>",
		Short: "Show bookable slots for the next week",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			d, err := lookupDoctor(cmd.Context(), a, args[0])
			if err != nil {
				return err
			}
			now, err := parseAt(a, at)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s (%s)\n", d.Name, d.Speciality)
			if !d.Available {
				fmt.Fprintln(a.out, "Not accepting bookings right now.")
			}
			for _, g := range a.generate(now) {
				labels := make([]string, 0, len(g.Slots))
				for _, s := range g.Slots {
					labels = append(labels, s.Label)
				}
				line := "no slots"
				if len(labels) > 0 {
					line = strings.Join(labels, "  ")
				}
				fmt.Fprintf(a.out, "%s  %s\n", g.Date.Format("Mon 02 Jan"), line)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "reference time (RFC3339), default now")
	return cmd
}

func profileCmd(get appFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or edit your profile",
	}
	show := &cobra.Command{
		Use:   "show",
		Short: "Show your profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			p, err := a.profile.Load(cmd.Context())
			if err != nil {
				return err
			}
			printProfile(a, p)
			return nil
		},
	}

	var image string
	fields := map[string]*string{}
	edit := &cobra.Command{
		Use:   "edit",
		Short: "Change profile fields and save",
		Long:  "Only the given fields change. Email cannot be edited.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			if _, err := a.requireSession("update profile"); err != nil {
				return err
			}
			if _, err := a.profile.Load(cmd.Context()); err != nil {
				return err
			}
			if err := a.profile.BeginEdit(); err != nil {
				return err
			}
			changed := false
			for _, name := range editableFields {
				if !cmd.Flags().Changed(flagFor(name)) {
					continue
				}
				if err := a.profile.SetField(name, *fields[name]); err != nil {
					return err
				}
				changed = true
			}
			if image != "" {
				data, err := os.ReadFile(image)
				if err != nil {
					return fmt.Errorf("read image: %w", err)
				}
				if err := a.profile.SetImage(&api.Image{Name: filepath.Base(image), Data: data}); err != nil {
					return err
				}
				changed = true
			}
			if !changed {
				a.profile.Discard()
				fmt.Fprintln(a.out, "nothing to change")
				return nil
			}
			if err := a.profile.Save(cmd.Context()); err != nil {
				if !errors.Is(err, profile.ErrReloadFailed) {
					return err
				}
				a.logger.Warn("showing submitted values", "err", err)
			}
			p, _ := a.profile.Profile()
			printProfile(a, p)
			return nil
		},
	}
	for _, name := range editableFields {
		fields[name] = edit.Flags().String(flagFor(name), "", "new "+name)
	}
	edit.Flags().StringVar(&image, "image", "", "path of a new avatar image")
	cmd.AddCommand(show, edit)
	return cmd
}

var editableFields = []string{"name", "phone", "gender", "dob", "address.line1", "address.line2"}

// flagFor turns "address.line1" into "line1".
func flagFor(field string) string {
	if i := strings.LastIndexByte(field, '.'); i >= 0 {
		return field[i+1:]
	}
	return field
}

func printProfile(a *app, p model.UserProfile) {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Name:\t%s\n", p.Name)
	fmt.Fprintf(tw, "Email:\t%s\n", p.Email)
	fmt.Fprintf(tw, "Phone:\t%s\n", p.Phone)
	fmt.Fprintf(tw, "Address:\t%s\n", joinAddress(p.Address))
	fmt.Fprintf(tw, "Gender:\t%s\n", p.Gender)
	fmt.Fprintf(tw, "Birthday:\t%s\n", p.DOB)
	_ = tw.Flush()
}

func bookCmd(get appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "book <doctor-id> <start-time>",
		Short: "Book one of the slots shown by 'slots'",
		Long:  "start-time is the slot start as RFC3339, or as YYYY-MM-DDTHH:MM in the configured timezone.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			token, err := a.requireSession("book appointment")
			if err != nil {
				return err
			}
			d, err := lookupDoctor(cmd.Context(), a, args[0])
			if err != nil {
				return err
			}
			if !d.Available {
				return a.reject(cmd.Context(), "book appointment", "Doctor Not Available")
			}
			start, err := parseStart(args[1], a.loc)
			if err != nil {
				return err
			}
			slot, ok := slots.Find(a.generate(a.now()), start)
			if !ok {
				return a.reject(cmd.Context(), "book appointment", "Not an offered slot, run 'patientctl slots "+d.ID+"'")
			}
			msg, err := a.client.BookAppointment(cmd.Context(), token, api.BookRequest{
				DoctorID: d.ID,
				SlotDate: slot.DateKey(),
				SlotTime: slot.Label,
			})
			if err != nil {
				notify.Error(cmd.Context(), a.notifier, "book appointment", api.Message(err))
				return err
			}
			notify.Success(cmd.Context(), a.notifier, "book appointment", msg)
			return nil
		},
	}
}

func parseStart(raw string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02T15:04", raw, loc)
	if err != nil {
		return time.Time{}, errors.New("start-time must be RFC3339 or YYYY-MM-DDTHH:MM")
	}
	return t, nil
}

func appointmentsCmd(get appFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "appointments",
		Short: "List or cancel your appointments",
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List your appointments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			token, err := a.requireSession("list appointments")
			if err != nil {
				return err
			}
			appts, err := a.client.ListAppointments(cmd.Context(), token)
			if err != nil {
				notify.Error(cmd.Context(), a.notifier, "list appointments", api.Message(err))
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDOCTOR\tDATE\tTIME\tFEE\tSTATUS")
			for _, ap := range appts {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					ap.ID, ap.Doctor.Name, ap.SlotDate, ap.SlotTime, model.FormatFee(ap.Amount, a.currency), ap.Status())
			}
			return tw.Flush()
		},
	}
	cancel := &cobra.Command{
		Use:   "cancel <appointment-id>",
		Short: "Cancel an appointment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			token, err := a.requireSession("cancel appointment")
			if err != nil {
				return err
			}
			msg, err := a.client.CancelAppointment(cmd.Context(), token, args[0])
			if err != nil {
				notify.Error(cmd.Context(), a.notifier, "cancel appointment", api.Message(err))
				return err
			}
			notify.Success(cmd.Context(), a.notifier, "cancel appointment", msg)
			return nil
		},
	}
	cmd.AddCommand(list, cancel)
	return cmd
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func joinAddress(a model.Address) string {
	parts := make([]string, 0, 2)
	for _, line := range []string{a.Line1, a.Line2} {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, ", ")
}
