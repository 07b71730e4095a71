package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"

	"market-maker-go/internal/container"
	"market-maker-go/order"
)

func main() {
	opts, err := parseOptions(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("参数错误: %v", err)
	}

	var copts []container.Option
	if opts.command == cmdSweep {
		copts = append(copts, container.WithSweeper())
	}
	c, err := container.New(opts.configPath, copts...)
	if err != nil {
		log.Fatalf("初始化失败: %v", err)
	}
	if err := c.Build(); err != nil {
		log.Fatalf("构建组件失败: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.command == cmdSweep {
		err = serve(ctx, c)
	} else {
		err = run(ctx, c, opts, os.Stdout)
	}
	if stopErr := c.Stop(); stopErr != nil && err == nil {
		err = stopErr
	}
	if err != nil {
		log.Fatalf("%s 失败: %v", opts.command, err)
	}
}

// serve 常驻运行定时清理，收到退出信号后返回
func serve(ctx context.Context, c *container.Container) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		c.Logger().Warn("systemd notify failed", zap.Error(err))
	} else if ok {
		c.Logger().Info("systemd notified ready")
	}

	go func() {
		if err := c.WatchConfig(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.Logger().Warn("config watcher stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	c.Logger().Info("shutdown signal received")
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	return nil
}

// run 执行一次性命令并把结果写到 out
func run(ctx context.Context, c *container.Container, opts options, out io.Writer) error {
	col := c.Collector()
	var (
		rep *order.Report
		err error
	)
	switch opts.command {
	case cmdClearLocal:
		rep, err = col.ClearLocal(ctx, order.LocalRequest{
			Purposes: opts.purposes,
			Pair:     opts.pair,
			Force:    opts.force,
			Side:     opts.side,
			Match:    opts.priceMatch(),
		})
	case cmdClearUnknown:
		rep, err = col.ClearUnknown(ctx, order.UnknownRequest{Pair: opts.pair, Force: opts.force, Side: opts.side})
	case cmdClearAll:
		rep, err = col.ClearAll(ctx, order.AllRequest{Pair: opts.pair, Force: opts.force, Side: opts.side})
	case cmdClearID:
		rep, err = col.ClearByID(ctx, opts.id, opts.pair, opts.side)
	case cmdStats:
		stats, serr := col.StatsByPurpose(ctx, opts.pair, opts.account)
		if serr != nil {
			return serr
		}
		pair := opts.pair
		if pair == "" {
			pair = c.Config().DefaultPair
		}
		_, err = fmt.Fprintln(out, order.FormatStats(pair, stats, nil))
		return err
	default:
		return fmt.Errorf("command %q cannot run once", opts.command)
	}

	if rep != nil {
		fmt.Fprintln(out, rep.LogMessage)
	}
	if err != nil {
		return err
	}
	if rep.Failed {
		return errors.New("operation did not complete")
	}
	return nil
}
