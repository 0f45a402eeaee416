// Package forecast は時系列の加法回帰モデルによる需要予測を提供します。
//
// モデルは区分線形トレンドと年次季節性（フーリエ級数）の和で構成され、
// 変化点には事前分布に相当するL2ペナルティを課して MAP 推定します。
// 予測区間は将来のトレンド変化と観測ノイズのシミュレーションから求めます。
package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"time"
)

const (
	dayDuration  = 24 * time.Hour
	yearlyPeriod = 365.25

	// スケール済み観測ノイズ標準偏差の下限。残差がほぼ 0 になっても事前分布が効くようにする
	minNoiseScale = 0.05
)

// Observation 観測値（日付と値）
type Observation struct {
	Date  time.Time
	Value float64
}

// Prediction 将来の1期分の予測値と予測区間
type Prediction struct {
	Date      time.Time
	Yhat      float64
	YhatLower float64
	YhatUpper float64
}

// Forecaster は履歴から日次の将来予測を行う
type Forecaster interface {
	Forecast(ctx context.Context, history []Observation, periods int) ([]Prediction, error)
}

// Config モデルのハイパーパラメータ
type Config struct {
	YearlyFourierOrder    int     // 年次季節性のフーリエ次数。0 で無効
	ChangepointPriorScale float64 // トレンドの柔軟性
	SeasonalityPriorScale float64
	ChangepointRange      float64 // 変化点を置く履歴の割合
	MaxChangepoints       int
	IntervalWidth         float64 // 予測区間の幅（0.8 = 80%）
	UncertaintySamples    int
	Seed                  uint64
}

// DefaultConfig 年次季節性のみ・変化点事前スケール 0.05 の設定
func DefaultConfig() Config {
	return Config{
		YearlyFourierOrder:    10,
		ChangepointPriorScale: 0.05,
		SeasonalityPriorScale: 10,
		ChangepointRange:      0.8,
		MaxChangepoints:       25,
		IntervalWidth:         0.8,
		UncertaintySamples:    300,
		Seed:                  42,
	}
}

// AdditiveModel は Forecaster の実装です。
// 呼び出しごとに独立した乱数源を作るため、並行に使用できます。
type AdditiveModel struct {
	cfg Config
}

// NewAdditiveModel 新しい加法回帰モデルを作成
func NewAdditiveModel(cfg Config) *AdditiveModel {
	return &AdditiveModel{cfg: cfg}
}

// fitted は学習済みパラメータ
type fitted struct {
	start        time.Time
	spanDays     float64
	yScale       float64
	changepoints []float64 // スケール済み t
	order        int       // 年次季節性のフーリエ次数
	k, m         float64
	deltas       []float64
	seasonal     []float64 // sin/cos 係数
	sigma        float64   // スケール済み残差標準偏差
}

// Forecast 履歴を学習し、最終観測日の翌日から periods 日分を予測する
func (am *AdditiveModel) Forecast(ctx context.Context, history []Observation, periods int) ([]Prediction, error) {
	if periods <= 0 {
		return nil, fmt.Errorf("forecast: periods must be positive, got %d", periods)
	}
	if len(history) < 2 {
		return nil, fmt.Errorf("forecast: need at least 2 observations, got %d", len(history))
	}
	for _, o := range history {
		if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
			return nil, errors.New("forecast: observations must be finite")
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	obs := make([]Observation, len(history))
	copy(obs, history)
	sort.SliceStable(obs, func(i, j int) bool { return obs[i].Date.Before(obs[j].Date) })

	model, err := am.fit(obs)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	last := obs[len(obs)-1].Date
	future := make([]time.Time, periods)
	for i := range future {
		future[i] = last.AddDate(0, 0, i+1)
	}
	return am.predict(ctx, model, future)
}

func (am *AdditiveModel) fit(obs []Observation) (*fitted, error) {
	n := len(obs)
	start := obs[0].Date
	spanDays := obs[n-1].Date.Sub(start).Hours() / 24
	if spanDays <= 0 {
		spanDays = 1
	}

	yScale := 0.0
	for _, o := range obs {
		yScale = math.Max(yScale, math.Abs(o.Value))
	}
	if yScale == 0 {
		yScale = 1
	}

	ts := make([]float64, n)
	ys := make([]float64, n)
	for i, o := range obs {
		ts[i] = daysSince(start, o.Date) / spanDays
		ys[i] = o.Value / yScale
	}

	model := &fitted{
		start:        start,
		spanDays:     spanDays,
		yScale:       yScale,
		changepoints: am.placeChangepoints(ts),
	}

	// 1年に満たない履歴では年次季節性を推定できない
	if spanDays >= yearlyPeriod {
		model.order = seasonalOrder(am.cfg.YearlyFourierOrder, n, len(model.changepoints))
	}

	X := make([][]float64, n)
	for i, o := range obs {
		X[i] = am.features(model, ts[i], o.Date)
	}

	// 事前分布の精度: k, m ~ N(0, 5)、δ ~ Laplace(0, τ) を分散の等しい正規分布で近似、季節性 ~ N(0, σs)
	nCP := len(model.changepoints)
	precision := make([]float64, len(X[0]))
	precision[0] = 1 / 25.0
	precision[1] = 1 / 25.0
	tau := am.cfg.ChangepointPriorScale
	for j := 0; j < nCP; j++ {
		precision[2+j] = 1 / (2 * tau * tau)
	}
	for j := 2 + nCP; j < len(precision); j++ {
		precision[j] = 1 / (am.cfg.SeasonalityPriorScale * am.cfg.SeasonalityPriorScale)
	}

	// 観測ノイズの分散を残差から更新しながら2回解く
	noiseFloor := minNoiseScale * minNoiseScale
	noiseVar := math.Max(calculateVariance(ys), noiseFloor)
	var beta []float64
	var residuals []float64
	for pass := 0; pass < 2; pass++ {
		penalty := make([]float64, len(precision))
		for j, p := range precision {
			penalty[j] = noiseVar * p
		}
		b, err := ridgeSolve(X, ys, penalty)
		if err != nil {
			return nil, fmt.Errorf("forecast: fitting failed: %w", err)
		}
		beta = b
		residuals = make([]float64, n)
		var rss float64
		for i := range X {
			residuals[i] = ys[i] - dot(X[i], beta)
			rss += residuals[i] * residuals[i]
		}
		noiseVar = math.Max(rss/float64(n), noiseFloor)
	}

	model.m = beta[0]
	model.k = beta[1]
	model.deltas = beta[2 : 2+nCP]
	model.seasonal = beta[2+nCP:]
	model.sigma = math.Sqrt(calculateVariance(residuals) + calculateMean(residuals)*calculateMean(residuals))
	return model, nil
}

// placeChangepoints は履歴の先頭 ChangepointRange の範囲に変化点を等間隔に置く
func (am *AdditiveModel) placeChangepoints(ts []float64) []float64 {
	histSize := int(math.Floor(float64(len(ts)) * am.cfg.ChangepointRange))
	nCP := am.cfg.MaxChangepoints
	if nCP+1 > histSize {
		nCP = histSize - 1
	}
	if nCP <= 0 {
		return nil
	}

	cps := make([]float64, 0, nCP)
	for j := 1; j <= nCP; j++ {
		idx := int(math.Round(float64(j) * float64(histSize-1) / float64(nCP)))
		cps = append(cps, ts[idx])
	}
	return cps
}

// seasonalOrder は季節性の係数 2*order が残りの自由度を超えないよう次数を制限する
func seasonalOrder(maxOrder, n, nCP int) int {
	order := maxOrder
	if limit := (n - 3 - nCP) / 2; order > limit {
		order = limit
	}
	if order < 0 {
		return 0
	}
	return order
}

// features は [m, k, δ..., sin1, cos1, ...] の説明変数を返す
func (am *AdditiveModel) features(model *fitted, t float64, date time.Time) []float64 {
	row := make([]float64, 0, 2+len(model.changepoints)+2*model.order)
	row = append(row, 1, t)
	for _, s := range model.changepoints {
		row = append(row, math.Max(0, t-s))
	}
	return append(row, fourier(date, model.order)...)
}

func fourier(date time.Time, maxOrder int) []float64 {
	out := make([]float64, 0, 2*maxOrder)
	days := float64(date.Unix()) / dayDuration.Seconds()
	for order := 1; order <= maxOrder; order++ {
		x := 2 * math.Pi * float64(order) * days / yearlyPeriod
		out = append(out, math.Sin(x), math.Cos(x))
	}
	return out
}

func (m *fitted) trend(t float64) float64 {
	v := m.k*t + m.m
	for j, s := range m.changepoints {
		if t > s {
			v += m.deltas[j] * (t - s)
		}
	}
	return v
}

func (am *AdditiveModel) predict(ctx context.Context, model *fitted, dates []time.Time) ([]Prediction, error) {
	ts := make([]float64, len(dates))
	seasonal := make([]float64, len(dates))
	for i, d := range dates {
		ts[i] = daysSince(model.start, d) / model.spanDays
		seasonal[i] = dot(fourier(d, model.order), model.seasonal)
	}

	samples := am.simulate(model, ts, seasonal)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lowerQ := (1 - am.cfg.IntervalWidth) / 2
	upperQ := 1 - lowerQ
	out := make([]Prediction, len(dates))
	for i, d := range dates {
		yhat := model.trend(ts[i]) + seasonal[i]
		out[i] = Prediction{
			Date:      d,
			Yhat:      yhat * model.yScale,
			YhatLower: quantile(samples[i], lowerQ) * model.yScale,
			YhatUpper: quantile(samples[i], upperQ) * model.yScale,
		}
	}
	return out, nil
}

// simulate は将来のトレンド変化と観測ノイズをサンプリングする。戻り値は [期][サンプル]
func (am *AdditiveModel) simulate(model *fitted, ts, seasonal []float64) [][]float64 {
	nSamples := am.cfg.UncertaintySamples
	if nSamples <= 0 {
		nSamples = 1
	}
	r := rand.New(rand.NewPCG(am.cfg.Seed, am.cfg.Seed^0x9e3779b97f4a7c15))

	// 将来の変化点の発生率と大きさは学習済み変化点から推定する
	maxT := 1.0
	for _, t := range ts {
		maxT = math.Max(maxT, t)
	}
	var meanAbsDelta float64
	for _, d := range model.deltas {
		meanAbsDelta += math.Abs(d)
	}
	if len(model.deltas) > 0 {
		meanAbsDelta /= float64(len(model.deltas))
	}
	laplaceScale := meanAbsDelta + 1e-8
	rate := float64(len(model.changepoints)) * (maxT - 1)

	samples := make([][]float64, len(ts))
	for i := range samples {
		samples[i] = make([]float64, nSamples)
	}
	for s := 0; s < nSamples; s++ {
		nChanges := poisson(r, rate)
		changeAt := make([]float64, nChanges)
		changeBy := make([]float64, nChanges)
		for c := 0; c < nChanges; c++ {
			changeAt[c] = 1 + r.Float64()*(maxT-1)
			changeBy[c] = laplace(r, laplaceScale)
		}
		for i, t := range ts {
			v := model.trend(t) + seasonal[i]
			for c := range changeAt {
				if t > changeAt[c] {
					v += changeBy[c] * (t - changeAt[c])
				}
			}
			samples[i][s] = v + r.NormFloat64()*model.sigma
		}
	}
	return samples
}

func daysSince(start, t time.Time) float64 {
	return t.Sub(start).Hours() / 24
}

func poisson(r *rand.Rand, lambda float64) int {
	if lambda <= 0 {
		return 0
	}
	limit := math.Exp(-lambda)
	k := 0
	p := r.Float64()
	for p > limit {
		k++
		p *= r.Float64()
	}
	return k
}

func laplace(r *rand.Rand, scale float64) float64 {
	u := r.Float64() - 0.5
	if u < 0 {
		return scale * math.Log(1+2*u)
	}
	return -scale * math.Log(1-2*u)
}
