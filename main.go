package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/AlisiaBaielli/TirAImisu/advice"
	"github.com/AlisiaBaielli/TirAImisu/api"
	"github.com/AlisiaBaielli/TirAImisu/calendar"
	"github.com/AlisiaBaielli/TirAImisu/config"
	"github.com/AlisiaBaielli/TirAImisu/db"
	"github.com/AlisiaBaielli/TirAImisu/deliver"
	"github.com/AlisiaBaielli/TirAImisu/dose"
	"github.com/AlisiaBaielli/TirAImisu/interaction"
	"github.com/AlisiaBaielli/TirAImisu/llm"
	"github.com/AlisiaBaielli/TirAImisu/logging"
	"github.com/AlisiaBaielli/TirAImisu/notify"
	"github.com/AlisiaBaielli/TirAImisu/scheduler"
)

const requestTimeout = 30 * time.Second

// interactionTimeout bounds a whole interaction check, which makes several
// label and model calls
const interactionTimeout = 20 * time.Second

// syncDays is how far ahead calendar sync pushes doses
const syncDays = 7

func errLog(messages ...interface{}) {
	fmt.Fprintln(os.Stderr, messages...)
}

func out(messages ...interface{}) {
	fmt.Println(messages...)
}

func help() {
	errLog(`usage: pillpal <command>

commands:
  serve                  serve the HTTP API
  run [once]             deliver notifications on the poll schedule, or once
  notifications          print a user's current notifications
  user add|get|list      manage users
  medication add|list    manage a user's medications
  calendar events|refresh|sync
                         show cached events, refresh them, or push upcoming doses`)
}

// app holds the wired components every command draws from
type app struct {
	cfg             config.Config
	db              *db.Badger
	log             *zap.SugaredLogger
	loc             *time.Location
	client          *calendar.Client
	source          *calendar.Source
	engine          *notify.Engine
	scanner         *llm.Scanner
	interactions    *interaction.Checker
	defaultCalendar string
}

func newApp(cfg config.Config, b *db.Badger, log *zap.SugaredLogger) (*app, error) {
	loc, err := cfg.Timezone()
	if err != nil {
		return nil, err
	}

	timeout, err := cfg.CollaboratorTimeout()
	if err != nil {
		return nil, err
	}

	window, err := cfg.EventWindow()
	if err != nil {
		return nil, err
	}

	defaultCalendar, _ := cfg.DefaultCalendarID()

	a := &app{
		cfg:             cfg,
		db:              b,
		log:             log,
		loc:             loc,
		defaultCalendar: defaultCalendar,
	}

	var live calendar.Lister
	if baseURL, err := cfg.CalendarBaseURL(); err == nil {
		token, _ := cfg.CalendarAPIToken()
		a.client = calendar.NewClient(baseURL, token, timeout, log.Named("calendar"))
		live = a.client
	} else {
		log.Infow("live calendar disabled", "error", err)
	}

	a.source = calendar.NewSource(b, live, timeout, log.Named("calendar"))

	var gen advice.Generator
	llmConfig, err := cfg.LLM()
	if err != nil {
		return nil, err
	}

	if model, err := llm.New(llmConfig); err == nil {
		gen = model
		a.scanner = llm.NewScanner(model)

		fdaURL, _ := cfg.OpenFDABaseURL()
		labels := interaction.NewLabelClient(fdaURL, timeout, log.Named("openfda"))
		a.interactions = interaction.NewChecker(labels, model, interactionTimeout, log.Named("interaction"))
		log.Infow("text generation enabled", "provider", llmConfig.Provider, "model", model.Model())
	} else {
		log.Infow("text generation disabled", "error", err)
	}

	opts := notify.DefaultOptions()
	opts.EventWindow = window
	opts.Location = loc
	opts.DefaultCalendarID = defaultCalendar

	advisor := advice.NewAdvisor(b, gen, timeout, log.Named("advice"))
	a.engine = notify.NewEngine(b, a.source, advisor, opts, log.Named("notify"))

	return a, nil
}

func (a *app) serve(ctx context.Context) error {
	addr, err := a.cfg.ListenAddr()
	if err != nil {
		return err
	}

	medications := &api.Medications{DB: a.db, Log: a.log.Named("api")}
	if a.scanner != nil {
		medications.Scanner = a.scanner
	}

	if a.interactions != nil {
		medications.Interactions = a.interactions
	}

	router := api.New(api.Handlers{
		Medications:   medications,
		Notifications: &api.Notifications{DB: a.db, Engine: a.engine, Log: a.log.Named("api")},
		Calendar:      &api.Calendar{Source: a.source, Log: a.log.Named("api")},
	}, requestTimeout, a.log.Named("api"))

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		a.log.Infow("listening", "addr", addr)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func (a *app) run(ctx context.Context, once bool) error {
	var senders []deliver.Sender
	if token, err := a.cfg.PushoverAPIToken(); err == nil {
		senders = append(senders, deliver.NewPushover(token, a.log.Named("pushover")))
	}

	if key, err := a.cfg.SendgridAPIKey(); err == nil {
		from, err := a.cfg.EmailFrom()
		if err != nil {
			return err
		}

		senders = append(senders, deliver.NewEmail(key, from, a.log.Named("email")))
	}

	if len(senders) == 0 {
		return errors.New("no delivery channel configured: set PUSHOVER_API_TOKEN or SENDGRID_API_KEY")
	}

	spec, err := a.cfg.PollSchedule()
	if err != nil {
		return err
	}

	dispatcher := deliver.NewDispatcher(a.db, a.log.Named("deliver"), senders...)
	s := scheduler.New(a.db, a.engine, dispatcher, spec, a.loc, requestTimeout, a.log.Named("scheduler"))

	if once {
		report, err := s.RunOnce(ctx)
		if err != nil {
			return err
		}

		out("sent", report.Sent, "skipped", report.Skipped, "failed", report.Failed)
		return nil
	}

	if err := s.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	s.Stop()

	return nil
}

// prompt reads one trimmed line from STDIN
func prompt(inputScanner *bufio.Scanner, label string) string {
	fmt.Print(label + ": ")
	inputScanner.Scan()

	return string(bytes.TrimSpace(inputScanner.Bytes()))
}

func promptUser(inputScanner *bufio.Scanner, b *db.Badger) (*db.User, error) {
	username := prompt(inputScanner, "username")
	if username == "" {
		return nil, fmt.Errorf("failed to get username from STDIN prompt: %w", inputScanner.Err())
	}

	user, err := b.GetUser(username)
	if db.IsNotFound(err) {
		return nil, fmt.Errorf("username %s doesn't exist", username)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to lookup username %s: %w", username, err)
	}

	return user, nil
}

func promptMedication(inputScanner *bufio.Scanner, user *db.User, today time.Time) (*db.Medication, error) {
	name := prompt(inputScanner, "drug name")
	if name == "" {
		return nil, fmt.Errorf("failed to get drug name from STDIN prompt: %w", inputScanner.Err())
	}

	strength := prompt(inputScanner, "strength (e.g. 100mg)")

	value := prompt(inputScanner, "quantity left")
	quantity, err := strconv.ParseFloat(value, 64)
	if err != nil || quantity < 0 {
		return nil, fmt.Errorf("invalid quantity left %q", value)
	}

	dosePerIntake := 1.0
	if value := prompt(inputScanner, "dose per intake [1]"); value != "" {
		dosePerIntake, err = strconv.ParseFloat(value, 64)
		if err != nil || dosePerIntake <= 0 {
			return nil, fmt.Errorf("invalid dose per intake %q", value)
		}
	}

	schedule := db.Schedule{Type: strings.ToLower(prompt(inputScanner, "schedule (daily, weekly, as_needed)"))}
	switch schedule.Type {
	case db.ScheduleDaily:
		for _, t := range strings.Split(prompt(inputScanner, "times (comma separated HH:MM)"), ",") {
			if t = strings.TrimSpace(t); t != "" {
				schedule.Times = append(schedule.Times, t)
			}
		}

	case db.ScheduleWeekly:
		schedule.Day = strings.ToLower(prompt(inputScanner, "day of week"))
		schedule.Time = prompt(inputScanner, "time (HH:MM)")

	case db.ScheduleAsNeeded:
		if value := prompt(inputScanner, "max per day"); value != "" {
			schedule.MaxPerDay, err = strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("invalid max per day %q", value)
			}
		}

	default:
		return nil, fmt.Errorf("unknown schedule type %q", schedule.Type)
	}

	startDate := prompt(inputScanner, "start date (YYYY-MM-DD) ["+today.Format("2006-01-02")+"]")
	if startDate == "" {
		startDate = today.Format("2006-01-02")
	}

	var devices []string
	for _, d := range strings.Split(prompt(inputScanner, "pushover device names (comma separated) [all]"), ",") {
		if d = strings.TrimSpace(d); d != "" {
			devices = append(devices, d)
		}
	}

	if missing := user.MissingDevices(devices); len(missing) > 0 {
		return nil, fmt.Errorf("the %s pushover device tokens don't exist for user %s", strings.Join(missing, ", "), user.Name)
	}

	return &db.Medication{
		IDUser:          user.ID,
		DrugName:        name,
		Strength:        strength,
		QuantityLeft:    quantity,
		DosePerIntake:   dosePerIntake,
		Schedule:        schedule,
		StartDate:       startDate,
		PushoverDevices: devices,
	}, nil
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	out(string(data))
	return nil
}

func main() {
	lenArgs := len(os.Args)
	if lenArgs <= 1 {
		help()
		errLog("must supply at least one argument")
		os.Exit(1)
	}

	// a missing .env file is fine, the environment may already be set
	_ = godotenv.Load()

	err := func() error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		inputScanner := bufio.NewScanner(os.Stdin)

		cfg, err := config.Load(os.Getenv(config.ConfigFileEnv))
		if err != nil {
			return err
		}

		logMode, err := cfg.LogMode()
		if err != nil {
			return err
		}

		log, err := logging.New(logMode)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}

		defer log.Sync()

		badgerPath, err := cfg.BadgerPath()
		if err != nil {
			return err
		}

		b, err := db.NewBadger(badgerPath, log.Named("db"))
		if err != nil {
			return err
		}

		defer b.Close()

		a, err := newApp(cfg, b, log)
		if err != nil {
			return err
		}

		switch os.Args[1] {
		case "serve":
			return a.serve(ctx)

		case "run":
			return a.run(ctx, lenArgs > 2 && os.Args[2] == "once")

		case "notifications":
			user, err := promptUser(inputScanner, b)
			if err != nil {
				return err
			}

			payload, err := a.engine.Compute(ctx, user, time.Now())
			if err != nil {
				return err
			}

			return printJSON(payload)

		case "user":
			if lenArgs < 3 {
				return errors.New("must supply an argument to the user command")
			}

			switch os.Args[2] {
			case "add":
				username := prompt(inputScanner, "username")
				if username == "" {
					return fmt.Errorf("failed to get username from STDIN prompt: %w", inputScanner.Err())
				}

				user := &db.User{
					Name:       username,
					Email:      prompt(inputScanner, "email (optional)"),
					CalendarID: prompt(inputScanner, "calendar id (optional)"),
				}

				if deviceToken := prompt(inputScanner, "pushover device token (optional)"); deviceToken != "" {
					user.PushoverDeviceTokens = map[string]string{
						"default": deviceToken,
					}
				}

				if user.Email == "" && len(user.PushoverDeviceTokens) == 0 {
					return errors.New("a user needs an email address or a pushover device token")
				}

				err = b.AddUser(user)
				if err != nil {
					return fmt.Errorf("failed to insert username %s: %w", username, err)
				}

				out("created user id", user.ID)

			case "get":
				user, err := promptUser(inputScanner, b)
				if err != nil {
					return err
				}

				return printJSON(user)

			case "list":
				users, err := b.ListUsers()
				if err != nil {
					return err
				}

				for _, user := range users {
					out(user.ID, user.Name)
				}

			default:
				return fmt.Errorf("unknown user command %s", os.Args[2])
			}

		case "medication":
			if lenArgs < 3 {
				return errors.New("must supply an argument to the medication command")
			}

			user, err := promptUser(inputScanner, b)
			if err != nil {
				return err
			}

			switch os.Args[2] {
			case "add":
				medication, err := promptMedication(inputScanner, user, time.Now().In(a.loc))
				if err != nil {
					return err
				}

				existing, err := b.ListMedicationsForUser(user.ID)
				if err != nil {
					return err
				}

				stored, renewed, err := b.AddMedication(medication)
				if err != nil {
					return err
				}

				if renewed {
					out("renewed", stored.DisplayName(), "now", stored.QuantityLeft, "left")
					return nil
				}

				out("added", stored.DisplayName(), stored.ID)

				if a.interactions == nil {
					return nil
				}

				names := make([]string, 0, len(existing))
				for _, m := range existing {
					names = append(names, m.DrugName)
				}

				for _, f := range a.interactions.Check(ctx, names, stored.DrugName) {
					out("interaction with", f.ExistingDrug, "|", f.Report.Severity, "|", f.Report.Description)
				}

			case "list":
				medications, err := b.ListMedicationsForUser(user.ID)
				if err != nil {
					return err
				}

				for _, medication := range medications {
					out(medication.ID, medication.DisplayName(), "|", api.Frequency(medication.Schedule), "|", medication.QuantityLeft, "left")
				}

			default:
				return fmt.Errorf("unknown medication command %s", os.Args[2])
			}

		case "calendar":
			if lenArgs < 3 {
				return errors.New("must supply an argument to the calendar command")
			}

			switch os.Args[2] {
			case "events", "refresh":
				calendarID := prompt(inputScanner, "calendar id ["+a.defaultCalendar+"]")
				if calendarID == "" {
					calendarID = a.defaultCalendar
				}

				if calendarID == "" {
					return errors.New("no calendar id given")
				}

				var events []calendar.Event
				if os.Args[2] == "refresh" {
					events, err = a.source.Refresh(ctx, calendarID)
				} else {
					events, err = a.source.Events(ctx, calendarID)
				}

				if err != nil {
					return err
				}

				return printJSON(events)

			case "sync":
				if a.client == nil {
					return calendar.ErrNoLiveSource
				}

				user, err := promptUser(inputScanner, b)
				if err != nil {
					return err
				}

				calendarID := user.CalendarID
				if calendarID == "" {
					calendarID = a.defaultCalendar
				}

				if calendarID == "" {
					return fmt.Errorf("user %s has no calendar", user.Name)
				}

				medications, err := b.ListMedicationsForUser(user.ID)
				if err != nil {
					return err
				}

				now := time.Now().In(a.loc)
				created, err := dose.Sync(ctx, a.client, calendarID, medications, now, a.loc, now, now.AddDate(0, 0, syncDays))
				out("created", created, "calendar events")

				return err

			default:
				return fmt.Errorf("unknown calendar command %s", os.Args[2])
			}

		default:
			help()
			return fmt.Errorf("unknown command %s", os.Args[1])
		}

		return nil
	}()

	if err != nil {
		errLog(err.Error())
		os.Exit(1)
	}
}
