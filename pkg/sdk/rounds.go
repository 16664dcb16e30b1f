package sdk

import (
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const roundsEndpoint = "/rounds"

type ClientRun struct {
	ID       string `json:"id"`
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	Duration string `json:"duration"`
}

type ClientMetrics struct {
	ID           string   `json:"id"`
	TrainingTime string   `json:"trainingTime"`
	ModelSize    int64    `json:"modelSize"`
	Loss         *float64 `json:"loss"`
	Accuracy     *float64 `json:"accuracy"`
}

type GlobalMetrics struct {
	Loss           *float64 `json:"loss"`
	Accuracy       *float64 `json:"accuracy"`
	CompletionRate int      `json:"completionRate"`
	TimeElapsed    string   `json:"timeElapsed"`
}

type RoundRecord struct {
	RoundNumber int             `json:"roundNumber"`
	StartedAt   time.Time       `json:"startedAt"`
	CompletedAt time.Time       `json:"completedAt"`
	Clients     []ClientMetrics `json:"clients"`
	Global      GlobalMetrics   `json:"global"`
}

type Round struct {
	State      string       `json:"state"`
	Record     *RoundRecord `json:"record,omitempty"`
	Clients    []ClientRun  `json:"clients"`
	Artifact   string       `json:"artifact,omitempty"`
	Error      string       `json:"error,omitempty"`
	Deployment []Outcome    `json:"deployment,omitempty"`
}

type History struct {
	Rounds      []RoundRecord `json:"rounds"`
	TotalRounds int           `json:"totalRounds"`
}

func (sdk *flSDK) RunRound(samples uint64, distribute bool) (Round, error) {
	q := url.Values{}
	if samples > 0 {
		q.Set("samples_per_client", strconv.FormatUint(samples, 10))
	}
	if distribute {
		q.Set("distribute", "true")
	}

	var r Round
	if err := sdk.getJSON(http.MethodPost, withQuery(sdk.coordinatorURL+roundsEndpoint, q), http.StatusOK, &r); err != nil {
		return Round{}, err
	}

	return r, nil
}

func (sdk *flSDK) History() (History, error) {
	var h History
	if err := sdk.getJSON(http.MethodGet, sdk.coordinatorURL+roundsEndpoint, http.StatusOK, &h); err != nil {
		return History{}, err
	}

	return h, nil
}
