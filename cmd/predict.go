package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"xente/config"
	"xente/inference"
	"xente/ml"
)

var predictFlags struct {
	category    string
	amountLoan  float64
	investor    int
	totalAmount float64
	json        bool
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict the default probability of one loan application",
	Example: `  xente predict --category Retail --amount-loan 5000 --investor 1 --total-amount 5000
  xente predict --category Airtime --amount-loan 120 --investor 2 --total-amount 150 --json`,
	Args: cobra.NoArgs,
	RunE: runPredict,
}

func init() {
	f := predictCmd.Flags()
	f.StringVar(&predictFlags.category, "category", inference.ProductCategories[0], "product category")
	f.Float64Var(&predictFlags.amountLoan, "amount-loan", inference.DefaultAmount, "amount of loan")
	f.IntVar(&predictFlags.investor, "investor", inference.InvestorIDs[0], "investor id")
	f.Float64Var(&predictFlags.totalAmount, "total-amount", inference.DefaultAmount, "total amount")
	f.BoolVar(&predictFlags.json, "json", false, "print the result as JSON")
}

func runPredict(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	arts, err := ml.LoadArtifacts(artifactPaths(cfg))
	if err != nil {
		return err
	}
	h, err := inference.NewHandler(arts, handlerOptions(cfg, zap.NewNop())...)
	if err != nil {
		return err
	}

	app := inference.Application{
		ProductCategory: predictFlags.category,
		AmountLoan:      predictFlags.amountLoan,
		InvestorID:      predictFlags.investor,
		TotalAmount:     predictFlags.totalAmount,
	}
	res, err := h.Predict(cmd.Context(), app)
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), cfg.UI.Locale, app, res, predictFlags.json)
}

func printResult(w io.Writer, locale string, app inference.Application, res inference.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			inference.Application
			inference.Result
			Formatted string `json:"formatted"`
		}{app, res, res.Formatted()})
	}

	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	p := message.NewPrinter(tag)
	p.Fprintf(w, "%s loan of %.2f (total %.2f), investor %d\n",
		app.ProductCategory, app.AmountLoan, app.TotalAmount, app.InvestorID)
	fmt.Fprintf(w, "Predicted Default Probability: %s\n", res.Formatted())
	return nil
}
