package server

import (
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/kartoza/downtime-predictor/internal/classifier"
	"github.com/kartoza/downtime-predictor/internal/display"
	"github.com/kartoza/downtime-predictor/internal/features"
)

// formNames maps catalog columns to form input names
var formNames = map[string]string{
	features.ColDownload:   "download_speed_mbps",
	features.ColUpload:     "upload_speed_mbps",
	features.ColLatency:    "latency_ms",
	features.ColJitter:     "jitter_ms",
	features.ColPacketLoss: "packet_loss",
	features.ColComplaints: "complaints",
}

type localityOptions struct {
	CityChosen bool
	Selected   string
	Options    []string
}

type fieldView struct {
	Name  string
	Label string
	Min   string
	Max   string
	Step  string
	Value string
	Error string
}

type pageData struct {
	Title          string
	HeaderURL      string
	ModelLoaded    bool
	City           string
	Weather        string
	Cities         []string
	WeatherOptions []string
	Localities     localityOptions
	Fields         []fieldView
	Errors         map[string]string
	Result         template.HTML
	About          template.HTML
	Failure        string
}

// formInput holds the submitted form, raw numeric text included so the page
// can echo back exactly what was typed
type formInput struct {
	features.Input
	raw map[string]string
}

func parseForm(r *http.Request) (formInput, map[string]string) {
	in := formInput{raw: make(map[string]string)}
	in.City = r.PostFormValue("city")
	in.Locality = r.PostFormValue("locality")
	in.WeatherCondition = r.PostFormValue("weather_condition")

	errs := make(map[string]string)
	targets := map[string]**float64{
		features.ColDownload:   &in.DownloadSpeedMbps,
		features.ColUpload:     &in.UploadSpeedMbps,
		features.ColLatency:    &in.LatencyMs,
		features.ColJitter:     &in.JitterMs,
		features.ColPacketLoss: &in.PacketLoss,
		features.ColComplaints: &in.Complaints,
	}
	for col, dst := range targets {
		v := strings.TrimSpace(r.PostFormValue(formNames[col]))
		if v == "" {
			continue
		}
		in.raw[col] = v
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs[col] = "must be a number"
			continue
		}
		*dst = features.Float(f)
	}
	return in, errs
}

func (s *Server) newPage(in formInput) pageData {
	cat := s.svc.Catalog()
	_, loaded := s.svc.ModelInfo()
	data := pageData{
		Title:          cat.Title,
		HeaderURL:      s.headerURL(),
		ModelLoaded:    loaded,
		City:           in.City,
		Weather:        in.WeatherCondition,
		Cities:         cat.CityNames(),
		WeatherOptions: cat.Weather,
		Localities:     s.localityOptions(in.City, in.Locality),
		Errors:         map[string]string{},
	}
	for _, f := range cat.Fields {
		view := fieldView{
			Name:  formNames[f.Column],
			Label: f.Label,
			Min:   f.FormatValue(f.Min),
			Max:   f.FormatValue(f.Max),
			Step:  strconv.FormatFloat(f.Step, 'f', -1, 64),
			Value: f.FormatValue(f.Min),
		}
		if v, ok := in.raw[f.Column]; ok {
			view.Value = v
		}
		data.Fields = append(data.Fields, view)
	}
	return data
}

func (s *Server) localityOptions(city, selected string) localityOptions {
	cat := s.svc.Catalog()
	if !cat.HasCity(city) {
		return localityOptions{}
	}
	return localityOptions{
		CityChosen: true,
		Selected:   selected,
		Options:    cat.Localities(city),
	}
}

func (s *Server) render(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.pages.ExecuteTemplate(w, "index.html", data); err != nil {
		s.log.Error("render_error", "err", err)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, s.newPage(formInput{}))
}

func (s *Server) handleLocalities(w http.ResponseWriter, r *http.Request) {
	opts := s.localityOptions(r.URL.Query().Get("city"), "")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.pages.ExecuteTemplate(w, "localities", opts); err != nil {
		s.log.Error("render_error", "err", err)
	}
}

// handleSubmit predicts from the posted form and re-renders the page with
// the inputs retained
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	in, errs := parseForm(r)
	data := s.newPage(in)
	setFieldErrors(&data, errs)
	if len(errs) > 0 {
		s.render(w, http.StatusBadRequest, data)
		return
	}

	res, err := s.svc.Predict(r.Context(), in.Input)
	if err != nil {
		var verr *features.ValidationError
		switch {
		case errors.As(err, &verr):
			setFieldErrors(&data, verr.Fields)
			s.render(w, http.StatusBadRequest, data)
		case errors.Is(err, classifier.ErrNoModel):
			data.Failure = "Model unavailable. Please try again later."
			s.render(w, http.StatusServiceUnavailable, data)
		default:
			s.log.Error("predict_error", "err", err)
			data.Failure = "Prediction failed. Please try again."
			s.render(w, http.StatusBadGateway, data)
		}
		return
	}

	data.Result = display.RenderResult(res.Label)
	if about, ok := s.svc.About(); ok {
		data.About = display.RenderAbout(about)
	}
	s.render(w, http.StatusOK, data)
}

func setFieldErrors(data *pageData, errs map[string]string) {
	for col, msg := range errs {
		data.Errors[col] = msg
		name, ok := formNames[col]
		if !ok {
			continue
		}
		for i := range data.Fields {
			if data.Fields[i].Name == name {
				data.Fields[i].Error = msg
			}
		}
	}
}
