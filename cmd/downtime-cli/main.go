// Command downtime-cli asks the prediction form's questions in a terminal
// and prints the predicted downtime category.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/kartoza/downtime-predictor/internal/catalog"
	"github.com/kartoza/downtime-predictor/internal/classifier"
	"github.com/kartoza/downtime-predictor/internal/config"
	"github.com/kartoza/downtime-predictor/internal/display"
	"github.com/kartoza/downtime-predictor/internal/features"
	"github.com/kartoza/downtime-predictor/internal/logger"
	"github.com/kartoza/downtime-predictor/internal/prediction"
)

func main() {
	if err := run(); err != nil {
		if errors.Is(err, terminal.InterruptErr) {
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.Setup()

	modelPath := flag.String("model", cfg.ModelPath, "Path to the exported model artifact")
	modelURL := flag.String("model-url", cfg.ModelURL, "Base URL of a remote model server (overrides -model)")
	flag.Parse()

	cat, err := catalog.Default()
	if cfg.CatalogPath != "" {
		cat, err = catalog.Load(cfg.CatalogPath)
	}
	if err != nil {
		return err
	}

	model, err := classifier.Open(classifier.Options{
		ModelPath: *modelPath,
		ModelURL:  strings.TrimRight(*modelURL, "/"),
		Timeout:   cfg.ModelTimeout,
		Columns:   cfg.ModelColumns,
		Accuracy:  cfg.ModelAccuracy,
	})
	if err != nil {
		return err
	}
	svc := prediction.NewService(cat, model, nil, nil, 0, log)

	fmt.Println(cat.Title)
	fmt.Println()

	in, err := ask(cat, svc.RequiresCategorical())
	if err != nil {
		return err
	}

	res, err := svc.Predict(context.Background(), in)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(display.RenderTerminal(res.Label))
	if about, ok := svc.About(); ok {
		fmt.Println()
		fmt.Print(about.Text())
	}
	return nil
}

// ask walks the form. Selectors are skipped when the model ignores them.
func ask(cat *catalog.Catalog, selectors bool) (features.Input, error) {
	var in features.Input
	if selectors {
		if err := survey.AskOne(&survey.Select{
			Message: "City",
			Options: cat.CityNames(),
		}, &in.City); err != nil {
			return in, err
		}
		if err := survey.AskOne(&survey.Select{
			Message: "Locality",
			Options: cat.Localities(in.City),
		}, &in.Locality); err != nil {
			return in, err
		}
		if err := survey.AskOne(&survey.Select{
			Message: "Weather Condition",
			Options: cat.Weather,
		}, &in.WeatherCondition); err != nil {
			return in, err
		}
	}

	targets := map[string]**float64{
		features.ColDownload:   &in.DownloadSpeedMbps,
		features.ColUpload:     &in.UploadSpeedMbps,
		features.ColLatency:    &in.LatencyMs,
		features.ColJitter:     &in.JitterMs,
		features.ColPacketLoss: &in.PacketLoss,
		features.ColComplaints: &in.Complaints,
	}
	for _, f := range cat.Fields {
		dst, ok := targets[f.Column]
		if !ok {
			continue
		}
		var answer string
		if err := survey.AskOne(&survey.Input{
			Message: f.Label,
			Default: f.FormatValue(f.Min),
		}, &answer, survey.WithValidator(isNumber)); err != nil {
			return in, err
		}
		v, _ := strconv.ParseFloat(strings.TrimSpace(answer), 64)
		*dst = features.Float(v)
	}
	return in, nil
}

func isNumber(ans interface{}) error {
	s, _ := ans.(string)
	if _, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
		return fmt.Errorf("%q is not a number", s)
	}
	return nil
}
