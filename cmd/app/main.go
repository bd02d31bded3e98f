package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/217th/tda-bq-marketdata-exporter/internal/di"
	apperrors "github.com/217th/tda-bq-marketdata-exporter/internal/errors"
	"github.com/217th/tda-bq-marketdata-exporter/internal/query"
	"github.com/217th/tda-bq-marketdata-exporter/pkg/config"
	"github.com/217th/tda-bq-marketdata-exporter/pkg/util"
)

type cliFlags struct {
	configPath string
	symbol     string
	timeframe  string
	exchange   string
	outputDir  string

	all     bool
	from    string
	to      string
	center  string
	nBefore int
	nAfter  int
}

func main() {
	os.Exit(run())
}

func run() int {
	var f cliFlags
	flag.StringVar(&f.configPath, "config", "config/config.yaml", "config file path")
	flag.StringVar(&f.symbol, "symbol", "", "instrument symbol, e.g. BTCUSDT")
	flag.StringVar(&f.timeframe, "timeframe", "", "timeframe token: 1M 1w 1d 4h 1h 15 5 1")
	flag.StringVar(&f.exchange, "exchange", "", "optional exchange filter, e.g. BINANCE")
	flag.StringVar(&f.outputDir, "output", "", "output directory (overrides config)")
	flag.BoolVar(&f.all, "all", false, "fetch all historical data (15 years)")
	flag.StringVar(&f.from, "from", "", "range start, ISO timestamp or unix seconds")
	flag.StringVar(&f.to, "to", "", "range end, ISO timestamp or unix seconds")
	flag.StringVar(&f.center, "timestamp", "", "neighborhood center, ISO timestamp or unix seconds")
	flag.IntVar(&f.nBefore, "n-before", -1, "records to fetch before the center timestamp")
	flag.IntVar(&f.nAfter, "n-after", -1, "records to fetch after the center timestamp")
	flag.Parse()

	req, err := buildRequest(f)
	if err != nil {
		return fail(err)
	}

	cfg, err := config.LoadWithEnv(f.configPath)
	if err != nil {
		return fail(apperrors.Wrap(apperrors.KindConfiguration, "load configuration", err))
	}
	if f.outputDir != "" {
		cfg.Output.Dir = f.outputDir
	}

	requestID := uuid.NewString()

	application, err := di.InitializeApp(cfg, di.RequestID(requestID))
	if err != nil {
		return fail(apperrors.Classify(err, apperrors.QueryContext{}))
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx, req); err != nil {
		if apperrors.KindOf(err) == apperrors.KindNoData {
			// empty result is a successful run
			return 0
		}
		return fail(err)
	}
	return 0
}

// buildRequest validates the flag combination and resolves the query mode:
// exactly one of --all, --from/--to, or --timestamp/--n-before/--n-after.
func buildRequest(f cliFlags) (query.Request, error) {
	req := query.Request{
		Symbol:    f.symbol,
		Timeframe: f.timeframe,
		Exchange:  f.exchange,
	}

	rangeMode := f.from != "" || f.to != ""
	neighborhoodMode := f.center != "" || f.nBefore >= 0 || f.nAfter >= 0

	modes := 0
	for _, selected := range []bool{f.all, rangeMode, neighborhoodMode} {
		if selected {
			modes++
		}
	}
	if modes == 0 {
		return req, apperrors.New(apperrors.KindValidation,
			"no query mode specified: use one of -all, -from/-to, or -timestamp/-n-before/-n-after")
	}
	if modes > 1 {
		return req, apperrors.New(apperrors.KindValidation,
			"multiple query modes specified: use only one of -all, -from/-to, or -timestamp/-n-before/-n-after")
	}

	switch {
	case f.all:
		req.Mode = query.ModeAll

	case rangeMode:
		if f.from == "" || f.to == "" {
			return req, apperrors.New(apperrors.KindValidation, "RANGE mode requires both -from and -to")
		}
		from, ok := util.ParseTime(f.from)
		if !ok {
			return req, apperrors.Newf(apperrors.KindValidation, "invalid -from timestamp: %q", f.from)
		}
		to, ok := util.ParseTime(f.to)
		if !ok {
			return req, apperrors.Newf(apperrors.KindValidation, "invalid -to timestamp: %q", f.to)
		}
		req.Mode = query.ModeRange
		req.From = from
		req.To = to

	default:
		if f.center == "" || f.nBefore < 0 || f.nAfter < 0 {
			return req, apperrors.New(apperrors.KindValidation,
				"NEIGHBORHOOD mode requires -timestamp, -n-before, and -n-after")
		}
		center, ok := util.ParseTime(f.center)
		if !ok {
			return req, apperrors.Newf(apperrors.KindValidation, "invalid -timestamp: %q", f.center)
		}
		req.Mode = query.ModeNeighborhood
		req.Center = center
		req.NBefore = f.nBefore
		req.NAfter = f.nAfter
	}

	return req, req.Validate()
}

func fail(err error) int {
	var ce *apperrors.ClassifiedError
	if errors.As(err, &ce) {
		fmt.Fprintf(os.Stderr, "Error: %s\n", ce.Message)
		if len(ce.Context) > 0 {
			fmt.Fprintf(os.Stderr, "Context: %v\n", ce.Context)
		}
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return apperrors.ExitCode(err)
}
