package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"market-maker-go/order"
)

const (
	cmdClearLocal   = "clear-local"
	cmdClearUnknown = "clear-unknown"
	cmdClearAll     = "clear-all"
	cmdClearID      = "clear-id"
	cmdStats        = "stats"
	cmdSweep        = "sweep"
)

var commands = []string{cmdClearLocal, cmdClearUnknown, cmdClearAll, cmdClearID, cmdStats, cmdSweep}

type options struct {
	configPath string
	command    string
	pair       string
	purposes   order.PurposeFilter
	side       order.Side
	force      bool
	id         string
	account    string
	priceMin   decimal.Decimal
	priceMax   decimal.Decimal
	hasMin     bool
	hasMax     bool
}

// parseOptions 解析命令行参数
func parseOptions(args []string, errOut io.Writer) (options, error) {
	fs := flag.NewFlagSet("collector", flag.ContinueOnError)
	fs.SetOutput(errOut)

	configPath := fs.String("config", "configs/collector.yaml", "配置文件路径")
	command := fs.String("cmd", cmdClearAll, "操作: "+strings.Join(commands, " | "))
	pair := fs.String("pair", "", "交易对（例如 ADM/USDT），留空使用 default_pair")
	purposes := fs.String("purposes", "all", "订单用途，逗号分隔：mm,ob,tb,liq,pw,man 或 all")
	side := fs.String("side", "", "只处理 buy 或 sell，留空为双边")
	force := fs.Bool("force", false, "重试直到没有剩余订单或达到最大轮数")
	id := fs.String("id", "", "clear-id 使用的订单号")
	account := fs.String("account", "", "stats 统计的账户，留空为主账户")
	priceMin := fs.String("price-min", "", "clear-local：只撤价格 >= 该值的订单")
	priceMax := fs.String("price-max", "", "clear-local：只撤价格 <= 该值的订单")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts := options{
		configPath: *configPath,
		command:    strings.ToLower(strings.TrimSpace(*command)),
		pair:       strings.TrimSpace(*pair),
		force:      *force,
		id:         strings.TrimSpace(*id),
		account:    strings.TrimSpace(*account),
	}
	if !validCommand(opts.command) {
		return options{}, fmt.Errorf("unknown command %q, expected one of %s", opts.command, strings.Join(commands, ", "))
	}

	var err error
	if opts.purposes, err = order.ParsePurposes(*purposes); err != nil {
		return options{}, err
	}
	if opts.side, err = order.ParseSide(*side); err != nil {
		return options{}, err
	}
	if *priceMin != "" {
		if opts.priceMin, err = decimal.NewFromString(*priceMin); err != nil {
			return options{}, fmt.Errorf("invalid -price-min: %w", err)
		}
		opts.hasMin = true
	}
	if *priceMax != "" {
		if opts.priceMax, err = decimal.NewFromString(*priceMax); err != nil {
			return options{}, fmt.Errorf("invalid -price-max: %w", err)
		}
		opts.hasMax = true
	}
	if opts.hasMin && opts.hasMax && opts.priceMin.GreaterThan(opts.priceMax) {
		return options{}, errors.New("-price-min is greater than -price-max")
	}
	if opts.command == cmdClearID && opts.id == "" {
		return options{}, errors.New("clear-id requires -id")
	}
	return opts, nil
}

func validCommand(cmd string) bool {
	for _, c := range commands {
		if c == cmd {
			return true
		}
	}
	return false
}

// priceMatch 把价格区间转换成记录过滤函数，没有区间时返回 nil
func (o options) priceMatch() func(*order.Record) bool {
	switch {
	case o.hasMin && o.hasMax:
		return order.PriceBetween(o.priceMin, o.priceMax)
	case o.hasMin:
		low := o.priceMin
		return func(r *order.Record) bool { return r.Price.GreaterThanOrEqual(low) }
	case o.hasMax:
		high := o.priceMax
		return func(r *order.Record) bool { return r.Price.LessThanOrEqual(high) }
	}
	return nil
}
