// Command session-report renders an HTML report for a speller session:
// per-trial decoding confidence and latency, and the accuracy of every
// training run, charted straight from the session database.
//
// Usage:
//
//	session-report -db speller_session.db [-session <id>] [-out report.html]
//
// Without -session the most recently active session is reported.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/yelabb/phantomspell/internal/db"
	"github.com/yelabb/phantomspell/internal/eeg/storage/sqlite"
)

var (
	dbFile    = flag.String("db", "speller_session.db", "Path to the SQLite session database")
	sessionID = flag.String("session", "", "Session to report (default: most recent)")
	outFile   = flag.String("out", "report.html", "Output HTML file")
)

func main() {
	flag.Parse()

	database, err := db.Open(*dbFile)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	store := sqlite.NewSessionStore(database.DB)

	session := *sessionID
	if session == "" {
		sessions, err := store.Sessions()
		if err != nil {
			log.Fatalf("failed to list sessions: %v", err)
		}
		if len(sessions) == 0 {
			log.Fatal("no sessions recorded in this database")
		}
		session = sessions[0]
	}

	trials, err := store.ListTrials(session)
	if err != nil {
		log.Fatalf("failed to list trials: %v", err)
	}
	runs, err := store.ListTrainingRuns(session)
	if err != nil {
		log.Fatalf("failed to list training runs: %v", err)
	}
	if len(trials) == 0 && len(runs) == 0 {
		log.Fatalf("session %s has no recorded activity", session)
	}

	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("Speller session %s", session)
	if len(trials) > 0 {
		page.AddCharts(confidenceChart(session, trials), latencyChart(trials))
	}
	if len(runs) > 0 {
		page.AddCharts(trainingChart(runs))
	}

	f, err := os.Create(*outFile)
	if err != nil {
		log.Fatalf("failed to create output file: %v", err)
	}
	defer f.Close()

	if err := page.Render(f); err != nil {
		log.Fatalf("failed to render report: %v", err)
	}
	log.Printf("wrote report for session %s (%d trials, %d training runs) to %s",
		session, len(trials), len(runs), *outFile)
}

func trialLabels(trials []*sqlite.TrialRecord) []string {
	labels := make([]string, len(trials))
	for i := range trials {
		labels[i] = fmt.Sprintf("%d", i+1)
	}
	return labels
}

// confidenceChart plots per-trial confidence with the decoded cell in the
// tooltip-friendly series name.
func confidenceChart(session string, trials []*sqlite.TrialRecord) components.Charter {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Decoding confidence per trial",
			Subtitle: fmt.Sprintf("session=%s trials=%d", session, len(trials)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Trial"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Confidence", Min: 0, Max: 1}),
	)

	data := make([]opts.LineData, len(trials))
	for i, tr := range trials {
		data[i] = opts.LineData{
			Value: tr.Confidence,
			Name:  fmt.Sprintf("(%d,%d)", tr.PredictedRow, tr.PredictedCol),
		}
	}
	line.SetXAxis(trialLabels(trials)).
		AddSeries("confidence", data,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true)}))
	return line
}

func latencyChart(trials []*sqlite.TrialRecord) components.Charter {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Classification latency per trial"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Trial"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Latency (ms)"}),
	)

	data := make([]opts.BarData, len(trials))
	for i, tr := range trials {
		data[i] = opts.BarData{Value: tr.LatencyMs}
	}
	bar.SetXAxis(trialLabels(trials)).AddSeries("latency_ms", data)
	return bar
}

func trainingChart(runs []*sqlite.TrainingRunRecord) components.Charter {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Training run accuracy"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Run"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "CV accuracy", Min: 0, Max: 1}),
	)

	labels := make([]string, len(runs))
	data := make([]opts.BarData, len(runs))
	for i, run := range runs {
		labels[i] = time.Unix(0, run.CreatedAt).Format("15:04:05")
		name := run.ModelID
		if run.Error != "" {
			name = "failed: " + run.Error
		}
		data[i] = opts.BarData{Value: run.Accuracy, Name: name}
	}
	bar.SetXAxis(labels).AddSeries("accuracy", data)
	return bar
}
