package sdk

import (
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const clientsEndpoint = "/clients"

type ClientStatus struct {
	Deployed     bool       `json:"deployed"`
	Acknowledged bool       `json:"ack"`
	Model        *string    `json:"model"`
	Timestamp    *time.Time `json:"timestamp"`
}

type Acknowledgement struct {
	Client string `json:"client"`
	ClientStatus
}

type TrainResult struct {
	ClientID string `json:"client_id"`
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	Duration string `json:"duration"`
}

func (sdk *flSDK) Status() (map[string]ClientStatus, error) {
	var table map[string]ClientStatus
	if err := sdk.getJSON(http.MethodGet, sdk.coordinatorURL+clientsEndpoint, http.StatusOK, &table); err != nil {
		return nil, err
	}

	return table, nil
}

func (sdk *flSDK) TrainClient(clientID string, samples uint64) (TrainResult, error) {
	q := url.Values{}
	if samples > 0 {
		q.Set("samples", strconv.FormatUint(samples, 10))
	}
	reqURL := withQuery(sdk.coordinatorURL+clientsEndpoint+"/"+url.PathEscape(clientID)+"/train", q)

	var res TrainResult
	if err := sdk.getJSON(http.MethodPost, reqURL, http.StatusOK, &res); err != nil {
		return TrainResult{}, err
	}

	return res, nil
}

func (sdk *flSDK) Acknowledge(clientID string) (Acknowledgement, error) {
	reqURL := sdk.coordinatorURL + clientsEndpoint + "/" + url.PathEscape(clientID) + "/ack"

	var ack Acknowledgement
	if err := sdk.getJSON(http.MethodPost, reqURL, http.StatusOK, &ack); err != nil {
		return Acknowledgement{}, err
	}

	return ack, nil
}
