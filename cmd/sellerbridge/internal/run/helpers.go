package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sellerbridge/sellerbridge/cmd/sellerbridge/internal"
	"github.com/sellerbridge/sellerbridge/pkg/audit"
	"github.com/sellerbridge/sellerbridge/pkg/bridge"
	"github.com/sellerbridge/sellerbridge/pkg/browser"
	"github.com/sellerbridge/sellerbridge/pkg/bus"
	"github.com/sellerbridge/sellerbridge/pkg/channels"
	"github.com/sellerbridge/sellerbridge/pkg/config"
	"github.com/sellerbridge/sellerbridge/pkg/correlation"
	"github.com/sellerbridge/sellerbridge/pkg/poller"
	"github.com/sellerbridge/sellerbridge/pkg/schedule"
	"github.com/sellerbridge/sellerbridge/pkg/session"
	"github.com/sellerbridge/sellerbridge/pkg/utils"
)

const shutdownTimeout = 15 * time.Second

func runCmd(parent context.Context, debug bool) error {
	if parent == nil {
		parent = context.Background()
	}

	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config (run 'sellerbridge onboard' to create one):\n%w", err)
	}

	logCloser, err := utils.SetupLogger(cfg.LogDir(), debug)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	if debug {
		fmt.Println("🔍 Debug mode enabled")
	}

	messageBus := bus.NewMessageBus()
	defer messageBus.Close()

	manager := channels.NewManager(messageBus)
	if err := registerChannels(manager, cfg, messageBus); err != nil {
		return err
	}

	var journal *audit.Journal
	if cfg.History.SQLitePath != "" {
		journal, err = audit.Open(config.ExpandHome(cfg.History.SQLitePath))
		if err != nil {
			return fmt.Errorf("open history journal: %w", err)
		}
		defer journal.Close()
	}

	store := correlation.NewStore(storeOptions(cfg, journal))
	sessions := session.NewManager(&browser.ChromeFactory{
		Headless:  cfg.Bridge.Headless,
		OpTimeout: cfg.Bridge.WaitTimeout(),
		ExecPath:  cfg.Bridge.ChromePath,
	}, sessionOptions(cfg))

	controller := bridge.NewController(bridge.Deps{
		Session:   sessions,
		Store:     store,
		Scheduler: schedule.NewCron(),
		Sender:    manager,
		Replies:   messageBus,
		Deleter:   manager,
	}, controllerOptions(cfg))

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A panic anywhere below still closes the browser.
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Fatal error: %v", r)
			shutdown(controller, manager)
			panic(r)
		}
	}()

	if err := manager.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}

	printBanner(os.Stdout, cfg, manager.Names(), journal != nil)
	log.Printf("Bridge started, notifying %s", cfg.Bridge.NotifyChannel)

	go messageBus.DispatchOutbound(ctx)
	controller.Run(ctx, messageBus)

	fmt.Println("\nShutting down...")
	return shutdown(controller, manager)
}

func shutdown(controller *bridge.Controller, manager *channels.Manager) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := errors.Join(controller.Shutdown(ctx), manager.StopAll(ctx))
	if err != nil {
		log.Printf("Shutdown finished with errors: %v", err)
	} else {
		log.Println("Shutdown complete")
	}
	return err
}

func registerChannels(manager *channels.Manager, cfg *config.Config, messageBus *bus.MessageBus) error {
	if cfg.Channels.Telegram.Enabled {
		manager.Register(channels.NewTelegramChannel(cfg.Channels.Telegram, messageBus))
	}
	if cfg.Channels.Discord.Enabled {
		dc, err := channels.NewDiscordChannel(cfg.Channels.Discord, messageBus)
		if err != nil {
			return fmt.Errorf("create discord channel: %w", err)
		}
		manager.Register(dc)
	}
	if len(manager.Names()) == 0 {
		return errors.New("no channels enabled")
	}
	return nil
}

func storeOptions(cfg *config.Config, journal *audit.Journal) correlation.Options {
	opts := correlation.Options{
		MaxEntries: cfg.Bridge.MaxCorrelations,
		MaxHistory: cfg.Bridge.MaxHistory,
	}
	if journal != nil {
		opts.Sink = journal
	}
	return opts
}

func sessionOptions(cfg *config.Config) session.Options {
	sel := cfg.Bridge.Selectors
	return session.Options{
		SignInURL: cfg.Bridge.SignInURL(),
		ChatURL:   cfg.Bridge.ChatURL(),
		Selectors: session.Selectors{
			EmailInput:    sel.EmailInput,
			PasswordInput: sel.PasswordInput,
			SubmitButton:  sel.SubmitButton,
			Dashboard:     sel.Dashboard,
			TwoFactor:     sel.TwoFactor,
			LoginError:    sel.LoginError,
		},
		WaitTimeout:  cfg.Bridge.WaitTimeout(),
		LoginTimeout: cfg.Bridge.LoginTimeout(),
	}
}

func controllerOptions(cfg *config.Config) bridge.Options {
	sel := cfg.Bridge.Selectors
	return bridge.Options{
		NotifyChannel: cfg.Bridge.NotifyChannel,
		NotifyChatID:  cfg.NotifyChatID(),
		StoreName:     cfg.Bridge.StoreName,
		StoreURL:      cfg.Bridge.StoreURL,
		PollInterval:  cfg.Bridge.PollInterval(),
		Headless:      cfg.Bridge.Headless,
		Poll: poller.Selectors{
			MessageItem: sel.MessageItem,
			SenderName:  sel.SenderName,
			IDAttr:      sel.MessageIDAttr,
		},
		Relay: bridge.RelayOptions{
			ChatInput:   sel.ChatInput,
			SendButton:  sel.SendButton,
			WaitTimeout: cfg.Bridge.ReplyTimeout(),
			Settle:      cfg.Bridge.SubmitSettle(),
		},
	}
}

func printBanner(w io.Writer, cfg *config.Config, channelNames []string, journal bool) {
	fmt.Fprintf(w, "%s %s\n", internal.Logo, internal.TitleStyle.Render("sellerbridge "+internal.FormatVersion()))
	fmt.Fprintln(w, internal.Field("  Seller center", cfg.Bridge.ChatURL()))
	fmt.Fprintln(w, internal.Field("  Channels", channelNames))
	fmt.Fprintln(w, internal.Field("  Notify", cfg.Bridge.NotifyChannel))
	fmt.Fprintln(w, internal.Field("  Poll interval", cfg.Bridge.PollInterval()))
	fmt.Fprintln(w, internal.Field("  Headless", cfg.Bridge.Headless))
	fmt.Fprintln(w, internal.Field("  History journal", journal))
	fmt.Fprintln(w, "Send /login to the bot to begin. Press Ctrl+C to stop.")
}
