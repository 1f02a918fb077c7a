package http

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"xente/db"
	"xente/inference"
	"xente/ml"
)

var (
	//go:embed templates/*.html static/*
	embedFS embed.FS
)

const recentOnHome = 10

type tab struct {
	Name string
	Path string
	Icon string
}

var tabs = []tab{
	{Name: "Home", Path: "/home", Icon: "🏠"},
	{Name: "Predictor", Path: "/predictor", Icon: "📊"},
	{Name: "About", Path: "/about", Icon: "ℹ️"},
}

var modelNames = map[string]string{
	ml.RandomForestType:       "Random Forest Classifier",
	ml.DecisionTreeType:       "Decision Tree Classifier",
	ml.LogisticRegressionType: "Logistic Regression",
}

// modelName 返回模型类型的展示名称，未知类型原样返回
func modelName(modelType string) string {
	if name, ok := modelNames[modelType]; ok {
		return name
	}
	return modelType
}

// formValues 保留用户提交的原始输入，重新渲染时回填
type formValues struct {
	ProductCategory string
	AmountLoan      string
	InvestorID      string
	TotalAmount     string
}

func defaultForm() formValues {
	amount := strconv.FormatFloat(inference.DefaultAmount, 'f', 2, 64)
	return formValues{
		ProductCategory: inference.ProductCategories[0],
		AmountLoan:      amount,
		InvestorID:      strconv.Itoa(inference.InvestorIDs[0]),
		TotalAmount:     amount,
	}
}

type pageData struct {
	Title      string
	Tab        string
	Tabs       []tab
	Categories []string
	Investors  []int
	Min        float64
	Max        float64
	Form       formValues
	Result     string
	Cached     bool
	Error      string
	Ready      bool
	ModelType  string
	Recent     []db.Prediction
}

type uiHandlers struct {
	tmpl    *template.Template
	service *inference.Service
	history HistoryStore
	title   string
	logger  *zap.Logger
}

func newUIHandlers(service *inference.Service, history HistoryStore, title, locale string, logger *zap.Logger) *uiHandlers {
	tag, err := language.Parse(locale)
	if err != nil {
		logger.Warn("unknown locale, using English", zap.String("locale", locale))
		tag = language.English
	}
	printer := message.NewPrinter(tag)

	funcs := template.FuncMap{
		"amount":    func(v float64) string { return printer.Sprintf("%.2f", v) },
		"when":      func(t time.Time) string { return t.Local().Format("2006-01-02 15:04:05") },
		"itoa":      strconv.Itoa,
		"modelName": modelName,
	}

	return &uiHandlers{
		tmpl:    template.Must(template.New("").Funcs(funcs).ParseFS(embedFS, "templates/*.html")),
		service: service,
		history: history,
		title:   title,
		logger:  logger,
	}
}

func (u *uiHandlers) register(mux *http.ServeMux, limiter *RateLimiter) {
	static, err := fs.Sub(embedFS, "static")
	if err != nil {
		panic(err)
	}
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))

	mux.HandleFunc("GET /{$}", u.handlePredictorPage)
	mux.HandleFunc("GET /predictor", u.handlePredictorPage)
	mux.Handle("POST /predictor", RateLimitMiddleware(limiter, http.HandlerFunc(u.handlePredictorSubmit)))
	mux.HandleFunc("GET /home", u.handleHome)
	mux.HandleFunc("GET /about", u.handleAbout)
}

func (u *uiHandlers) page(name string) pageData {
	d := pageData{
		Title:      u.title,
		Tab:        name,
		Tabs:       tabs,
		Categories: inference.ProductCategories,
		Investors:  inference.InvestorIDs,
		Min:        inference.MinAmount,
		Max:        inference.MaxAmount,
		Form:       defaultForm(),
	}
	if h := u.service.Handler(); h != nil {
		d.Ready = true
		d.ModelType = h.ModelType()
	}
	return d
}

func (u *uiHandlers) handleHome(w http.ResponseWriter, r *http.Request) {
	d := u.page("Home")
	if u.history != nil {
		recent, err := u.history.RecentPredictions(r.Context(), recentOnHome)
		if err != nil {
			u.logger.Warn("loading recent predictions failed", zap.Error(err))
		}
		d.Recent = recent
	}
	u.render(w, http.StatusOK, "home", d)
}

func (u *uiHandlers) handleAbout(w http.ResponseWriter, r *http.Request) {
	u.render(w, http.StatusOK, "about", u.page("About"))
}

func (u *uiHandlers) handlePredictorPage(w http.ResponseWriter, r *http.Request) {
	u.render(w, http.StatusOK, "predictor", u.page("Predictor"))
}

func (u *uiHandlers) handlePredictorSubmit(w http.ResponseWriter, r *http.Request) {
	d := u.page("Predictor")
	if err := r.ParseForm(); err != nil {
		d.Error = "could not read the form"
		u.render(w, http.StatusBadRequest, "predictor", d)
		return
	}
	d.Form = formValues{
		ProductCategory: r.PostForm.Get("product_category"),
		AmountLoan:      strings.TrimSpace(r.PostForm.Get("amount_loan")),
		InvestorID:      r.PostForm.Get("investor_id"),
		TotalAmount:     strings.TrimSpace(r.PostForm.Get("total_amount")),
	}

	app, err := parseForm(d.Form)
	if err != nil {
		d.Error = err.Error()
		u.render(w, http.StatusBadRequest, "predictor", d)
		return
	}

	res, err := u.service.Predict(r.Context(), app)
	if err != nil {
		status := statusFor(err)
		d.Error = err.Error()
		if status == http.StatusInternalServerError {
			u.logger.Error("predict failed",
				zap.String("request_id", GetRequestID(r.Context())),
				zap.Error(err))
			d.Error = "prediction failed"
		}
		u.render(w, status, "predictor", d)
		return
	}

	d.Result = res.Formatted()
	d.Cached = res.Cached
	d.ModelType = res.ModelType
	u.render(w, http.StatusOK, "predictor", d)
}

// parseForm 将表单字段转换为申请，数值校验交给Application.Validate
func parseForm(f formValues) (inference.Application, error) {
	amountLoan, err := strconv.ParseFloat(f.AmountLoan, 64)
	if err != nil {
		return inference.Application{}, formError("Amount of Loan must be a number")
	}
	totalAmount, err := strconv.ParseFloat(f.TotalAmount, 64)
	if err != nil {
		return inference.Application{}, formError("Total Amount must be a number")
	}
	investor, err := strconv.Atoi(f.InvestorID)
	if err != nil {
		return inference.Application{}, formError("Investor ID must be a whole number")
	}
	return inference.Application{
		ProductCategory: f.ProductCategory,
		AmountLoan:      amountLoan,
		InvestorID:      investor,
		TotalAmount:     totalAmount,
	}, nil
}

type formError string

func (e formError) Error() string { return string(e) }

func (u *uiHandlers) render(w http.ResponseWriter, status int, name string, d pageData) {
	var buf bytes.Buffer
	if err := u.tmpl.ExecuteTemplate(&buf, name, d); err != nil {
		u.logger.Error("template render failed", zap.String("template", name), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
