package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/payroll-engine-go/internal/config"
	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine-go/internal/fixtures"
	appHTTP "github.com/cmlabs-hris/payroll-engine-go/internal/handler/http"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/authz"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/database"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/runlock"
	"github.com/cmlabs-hris/payroll-engine-go/internal/repository/memory"
	"github.com/cmlabs-hris/payroll-engine-go/internal/repository/postgresql"
	payrollService "github.com/cmlabs-hris/payroll-engine-go/internal/service/payroll"
)

// stores groups the collaborators the payroll service reads and writes.
type stores struct {
	sites      payroll.SiteDirectory
	attendance payroll.AttendanceProvider
	employees  payroll.EmployeeDirectory
	deductions payroll.DeductionConfigProvider
	runs       payroll.RunStore
	close      func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		return
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.App.LogLevel)); err != nil {
		log.Fatal("Invalid LOG_LEVEL: ", cfg.App.LogLevel)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize store: ", err)
	}
	defer st.close()

	var locker payroll.RunLocker
	switch cfg.Lock.Driver {
	case config.LockLocal:
		locker = runlock.NewLocal(cfg.Lock.Wait)
	case config.LockValkey:
		client, err := runlock.NewValkeyClient(cfg.Lock.ValkeyAddr, cfg.Lock.ValkeyPassword, cfg.Lock.ValkeyDB)
		if err != nil {
			log.Fatal("Failed to connect to valkey: ", err)
		}
		defer client.Close()
		locker = runlock.NewValkey(client, runlock.ValkeyOptions{TTL: cfg.Lock.TTL, Wait: cfg.Lock.Wait})
	default:
		log.Fatal("Unsupported run lock driver: ", cfg.Lock.Driver)
	}

	authorizer, err := authz.NewAuthorizer(cfg.Authz.PolicyPath)
	if err != nil {
		log.Fatal("Failed to initialize authorizer: ", err)
	}

	rules := payrollService.DeductionRules{
		PFRate:     cfg.Payroll.PFRate,
		ESIRate:    cfg.Payroll.ESIRate,
		ESICeiling: cfg.Payroll.ESICeiling,
	}
	payrollSvc := payrollService.NewPayrollService(
		st.sites,
		st.attendance,
		st.employees,
		st.deductions,
		st.runs,
		authorizer,
		locker,
		rules,
		cfg.Payroll.Workers,
	)

	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)
	payrollHandler := appHTTP.NewPayrollHandler(payrollSvc)

	router := appHTTP.NewRouter(JWTService, payrollHandler, appHTTP.RouterOptions{
		Env:            cfg.App.Env,
		Version:        cfg.App.Version,
		AllowedOrigins: cfg.App.AllowedOrigins,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server running", "addr", "http://localhost"+server.Addr, "store", cfg.Store.Driver, "lock", cfg.Lock.Driver)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
	}
}

func openStores(ctx context.Context, cfg *config.Config) (stores, error) {
	switch cfg.Store.Driver {
	case config.StoreMemory:
		store := memory.NewStore()
		switch {
		case cfg.Store.SeedPath != "":
			if err := store.LoadSeedFile(cfg.Store.SeedPath); err != nil {
				return stores{}, err
			}
		case cfg.App.Env == "development":
			if err := store.LoadSeed(fixtures.DemoSeed()); err != nil {
				return stores{}, err
			}
			slog.Info("loaded demo seed into memory store")
		}
		return stores{
			sites:      store,
			attendance: store,
			employees:  store,
			deductions: store,
			runs:       store,
			close:      func() {},
		}, nil

	case config.StorePostgres:
		db, err := database.NewPostgreSQLDB(cfg.DatabaseURL(), database.PoolOptions{
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			return stores{}, fmt.Errorf("connect to database: %w", err)
		}
		if cfg.Store.AutoMigrate {
			if err := postgresql.EnsureSchema(ctx, db); err != nil {
				db.Close()
				return stores{}, fmt.Errorf("apply schema: %w", err)
			}
		}
		return stores{
			sites:      postgresql.NewSiteRepository(db),
			attendance: postgresql.NewAttendanceRepository(db),
			employees:  postgresql.NewEmployeeRepository(db),
			deductions: postgresql.NewDeductionConfigRepository(db),
			runs:       postgresql.NewPayrollRunRepository(db),
			close:      db.Close,
		}, nil
	}
	return stores{}, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
}
