package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go_imgutils/core"

	"github.com/fatih/color"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Service identity used by every platform backend.
const (
	serviceName        = "imgutils"
	serviceDisplayName = "imgutils watch service"
	serviceDescription = "Restores, upscales and AI-checks images dropped into an inbox directory"
)

// program runs watch mode under the service manager.
type program struct {
	app     *app
	timeout time.Duration
	// exit ends the process when watch fails without being stopped, so the
	// service manager sees the failure and can restart it.
	exit func(code int)

	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Start is called by the service manager and must not block.
func (p *program) Start(service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		// The service manager owns signals.
		p.err = p.app.runWatch(ctx, false)
		if p.err == nil {
			return
		}
		if ctx.Err() != nil {
			p.app.logger.Error("Watch service stopped with error", zap.Error(p.err))
			return
		}
		code := core.ExitCodeForError(p.err)
		p.app.logger.Error("Watch service failed", zap.Error(p.err), zap.Int("exit_code", code))
		_ = p.app.logger.Sync()
		p.exit(code)
	}()
	return nil
}

// Stop cancels watch mode and waits for its shutdown hooks.
func (p *program) Stop(service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	select {
	case <-p.done:
		return nil
	case <-time.After(p.timeout):
		return fmt.Errorf("timeout waiting for service to stop after %s", p.timeout)
	}
}

// serviceConfig describes the installed service. It starts "service run"
// with the same config file the installing command used.
func (a *app) serviceConfig() *service.Config {
	args := []string{"service", "run"}
	if a.configPath != "" {
		args = append(args, "--config", a.configPath)
	}
	return &service.Config{
		Name:        serviceName,
		DisplayName: serviceDisplayName,
		Description: serviceDescription,
		Arguments:   args,
		Option: service.KeyValue{
			"StartType": "automatic",
			"Restart":   "on-failure",
		},
	}
}

func (a *app) newService() (service.Service, *program, error) {
	// Stop waits for watch's own shutdown budget plus some slack for hooks.
	prg := &program{app: a, timeout: a.cfg.ShutdownTimeout + 5*time.Second, exit: os.Exit}
	s, err := service.New(prg, a.serviceConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create service: %w", err)
	}
	return s, prg, nil
}

func (a *app) serviceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Install and control watch mode as a system service",
	}

	control := func(use, short, done string, action func(service.Service) error) *cobra.Command {
		return &cobra.Command{
			Use:     use,
			Short:   short,
			Args:    cobra.NoArgs,
			Aliases: serviceAliases(use),
			RunE: func(*cobra.Command, []string) error {
				s, _, err := a.newService()
				if err != nil {
					return err
				}
				if err := action(s); err != nil {
					return fmt.Errorf("failed to %s service: %w", use, err)
				}
				fmt.Fprintln(a.stdout, color.GreenString("Service "+done))
				return nil
			},
		}
	}

	cmd.AddCommand(
		control("install", "Install the service", "installed", service.Service.Install),
		control("uninstall", "Remove the service", "uninstalled", service.Service.Uninstall),
		control("start", "Start the service", "started", service.Service.Start),
		control("stop", "Stop the service", "stopped", service.Service.Stop),
		control("restart", "Stop and start the service", "restarted", service.Service.Restart),
		&cobra.Command{
			Use:   "status",
			Short: "Show whether the service is running",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				s, _, err := a.newService()
				if err != nil {
					return err
				}
				status, err := s.Status()
				if err != nil {
					return fmt.Errorf("failed to get service status: %w", err)
				}
				fmt.Fprintln(a.stdout, "Service is "+statusName(status))
				return nil
			},
		},
		&cobra.Command{
			Use:   "run",
			Short: "Run watch mode under the service manager",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				s, prg, err := a.newService()
				if err != nil {
					return err
				}
				if err := s.Run(); err != nil {
					return fmt.Errorf("service run failed: %w", err)
				}
				return prg.err
			},
		},
	)
	return cmd
}

func serviceAliases(use string) []string {
	if use == "uninstall" {
		return []string{"remove"}
	}
	return nil
}

func statusName(s service.Status) string {
	switch s {
	case service.StatusRunning:
		return color.GreenString("running")
	case service.StatusStopped:
		return color.YellowString("stopped")
	default:
		return "in an unknown state"
	}
}
