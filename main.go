package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/Xtsservices/BasavatarakamCanteen2/api"
	"github.com/Xtsservices/BasavatarakamCanteen2/backend"
	"github.com/Xtsservices/BasavatarakamCanteen2/bot"
	"github.com/Xtsservices/BasavatarakamCanteen2/config"
	"github.com/Xtsservices/BasavatarakamCanteen2/connectivity"
	"github.com/Xtsservices/BasavatarakamCanteen2/models"
	"github.com/Xtsservices/BasavatarakamCanteen2/printer"
	"github.com/Xtsservices/BasavatarakamCanteen2/receipt"
	"github.com/Xtsservices/BasavatarakamCanteen2/services"
)

type app struct {
	cfg    *config.Config
	logger *zap.SugaredLogger
}

func main() {
	a := &app{}
	cliApp := &cli.App{
		Name:  "counter",
		Usage: "walk-in ordering counter for a single outlet",
		Before: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return errors.Wrap(err, "config")
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return errors.Wrap(err, "logger")
			}
			a.cfg, a.logger = cfg, logger
			return nil
		},
		After: func(c *cli.Context) error {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the counter engine with the kiosk API and the Telegram cashier",
				Action: a.serve,
			},
			{
				Name:  "menu",
				Usage: "sync once and print the grouped menu",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "category", Usage: "category filter, empty for all items"},
					&cli.StringFlag{Name: "search", Usage: "name search"},
					&cli.IntFlag{Name: "columns", Value: 2, Usage: "grid columns used for padding"},
				},
				Action: a.menu,
			},
			{
				Name:  "receipt",
				Usage: "render a sample bill to check the printer layout",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "mode", Value: "cash", Usage: "cash or upi"},
					&cli.BoolFlag{Name: "html", Usage: "print the HTML document instead of text"},
					&cli.BoolFlag{Name: "print", Usage: "send the bill to the configured printer"},
				},
				Action: a.receipt,
			},
		},
	}
	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) (*zap.SugaredLogger, error) {
	zc := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zc = zap.NewProductionConfig()
	}
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, errors.Wrapf(err, "LOG_LEVEL %q", cfg.LogLevel)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	logger, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar().With("outlet_id", cfg.Outlet.ID), nil
}

func (a *app) backendClient() *backend.Client {
	return backend.New(backend.Config{
		BaseURL:        a.cfg.Backend.BaseURL,
		OutletID:       a.cfg.Outlet.ID,
		CategoriesPath: a.cfg.Backend.CategoriesPath,
		ItemsPath:      a.cfg.Backend.ItemsPath,
		OrdersPath:     a.cfg.Backend.OrdersPath,
		Timeout:        a.cfg.Backend.Timeout,
	})
}

func (a *app) layout() (receipt.Layout, error) {
	loc, err := a.cfg.Location()
	if err != nil {
		return receipt.Layout{}, err
	}
	return receipt.Layout{Outlet: a.cfg.Outlet.Name, Footer: a.cfg.Outlet.Footer, Location: loc}, nil
}

func (a *app) printer(cashier *tgbotapi.BotAPI) (services.Printer, error) {
	switch a.cfg.Printer.Kind {
	case config.PrinterTelegram:
		sender := cashier
		if a.cfg.Printer.Token != "" {
			botAPI, err := tgbotapi.NewBotAPI(a.cfg.Printer.Token)
			if err != nil {
				return nil, errors.Wrap(err, "printer bot")
			}
			sender = botAPI
		}
		if sender == nil {
			return nil, errors.New("telegram printer has no bot token")
		}
		return &printer.Telegram{Bot: sender, ChatID: a.cfg.Printer.ChatID}, nil
	case config.PrinterNetwork:
		return &printer.Network{Addr: a.cfg.Printer.Addr, Timeout: a.cfg.Backend.Timeout}, nil
	}
	return &printer.Spool{Dir: a.cfg.Printer.SpoolDir, Logger: a.logger}, nil
}

func (a *app) serve(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cashier *tgbotapi.BotAPI
	if a.cfg.Telegram.Token != "" {
		botAPI, err := tgbotapi.NewBotAPI(a.cfg.Telegram.Token)
		if err != nil {
			return errors.Wrap(err, "telegram")
		}
		cashier = botAPI
	}
	p, err := a.printer(cashier)
	if err != nil {
		return err
	}
	layout, err := a.layout()
	if err != nil {
		return err
	}

	client := a.backendClient()
	catalog := services.NewCatalog(client, a.logger)
	monitor := connectivity.New(
		connectivity.TCPProber(a.cfg.Connectivity.ProbeAddr, a.cfg.Connectivity.Timeout),
		a.cfg.Connectivity.Interval, a.logger)
	engine := services.NewEngine(catalog, p, client, monitor, services.EngineConfig{
		OutletID: a.cfg.Outlet.ID,
		Mobile:   a.cfg.Outlet.Mobile,
		Layout:   layout,
		Timeout:  a.cfg.Backend.Timeout,
	}, a.logger)

	srv := &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      api.NewServer(engine, a.logger).Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  time.Minute,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return engine.Run(ctx) })
	g.Go(func() error {
		monitor.Run(ctx)
		return nil
	})
	g.Go(func() error {
		a.logger.Infow("kiosk api listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.logger.Infow("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if cashier != nil {
		cashierBot := bot.New(cashier, engine, a.cfg.Outlet.Name, a.cfg.Telegram.OperatorChatID, a.logger)
		g.Go(func() error {
			a.logger.Infow("telegram cashier started", "bot", cashier.Self.UserName)
			return cashierBot.Run(ctx)
		})
	}
	return g.Wait()
}

func (a *app) menu(c *cli.Context) error {
	ctx, cancel := context.WithTimeout(c.Context, a.cfg.Backend.Timeout)
	defer cancel()

	catalog := services.NewCatalog(a.backendClient(), a.logger)
	categories, err := catalog.Categories(ctx)
	if err != nil {
		return errors.Wrap(err, "categories")
	}
	items, err := catalog.Items(ctx)
	if err != nil {
		return errors.Wrap(err, "items")
	}

	out := c.App.Writer
	fmt.Fprintf(out, "Categories: %v\n", categories)
	view := services.BuildView(items, c.String("category"), c.String("search"), c.Int("columns"))
	if view.EmptyReason != "" {
		fmt.Fprintln(out, view.EmptyReason)
		return nil
	}
	for _, s := range view.Sections {
		fmt.Fprintf(out, "\n[%s]\n", s.Title)
		for _, it := range s.Items {
			if it.IsPlaceholder() {
				fmt.Fprintf(out, "  (%d) -\n", it.ID)
				continue
			}
			fmt.Fprintf(out, "  %-6d %-28s %10s  %s\n", it.ID, models.Truncate(it.Name, 25), receipt.Money(it.Price), it.FoodType)
		}
	}
	return nil
}

func (a *app) receipt(c *cli.Context) error {
	mode, ok := models.ParsePaymentMode(c.String("mode"))
	if !ok {
		return errors.Errorf("unknown payment mode %q", c.String("mode"))
	}
	layout, err := a.layout()
	if err != nil {
		return err
	}
	sample := services.Checkout{
		ID:   uuid.NewString(),
		At:   time.Now(),
		Mode: mode,
		Lines: []models.MenuItem{
			{ID: 1, Name: "Masala Dosa", Price: decimal.RequireFromString("60"), Quantity: 2},
			{ID: 2, Name: "Filter Coffee", Price: decimal.RequireFromString("25"), Quantity: 1},
		},
	}
	sample.Total = services.TotalAmount(sample.Lines)

	doc, err := receipt.Render(sample.Bill(), layout)
	if err != nil {
		return err
	}
	if c.Bool("print") {
		var cashier *tgbotapi.BotAPI
		if a.cfg.Printer.Kind == config.PrinterTelegram && a.cfg.Printer.Token == "" {
			if cashier, err = tgbotapi.NewBotAPI(a.cfg.Telegram.Token); err != nil {
				return errors.Wrap(err, "telegram")
			}
		}
		p, err := a.printer(cashier)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(c.Context, a.cfg.Backend.Timeout)
		defer cancel()
		if err := p.Print(ctx, doc); err != nil {
			return errors.Wrap(err, "print")
		}
		a.logger.Infow("sample bill printed", "receipt_id", sample.ID, "printer", a.cfg.Printer.Kind)
	}
	if c.Bool("html") {
		fmt.Fprint(c.App.Writer, doc.HTML)
		return nil
	}
	fmt.Fprint(c.App.Writer, doc.Text)
	return nil
}
