package sdk

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const CTJSON string = "application/json"

var ErrUnexpectedResponse = errors.New("unexpected response code")

type SDK interface {
	// InitGlobal writes a fresh initial global model on the coordinator.
	//
	// example:
	//  info, _ := sdk.InitGlobal()
	//  fmt.Println(info.Path)
	InitGlobal() (ArtifactInfo, error)

	// Aggregate averages the clients' local models into the updated
	// global model.
	//
	// example:
	//  info, _ := sdk.Aggregate()
	//  fmt.Println(info.Path)
	Aggregate() (ArtifactInfo, error)

	// ModelStatus reports which global models exist.
	ModelStatus() (ModelStatus, error)

	// Distribute copies a server model to clients. Empty arguments select
	// the updated global model and every client.
	//
	// example:
	//  outcomes, _ := sdk.Distribute("", []string{"1", "2"})
	//  fmt.Println(outcomes["1"].Status)
	Distribute(modelName string, clientIDs []string) (map[string]Outcome, error)

	// DistributeStream is Distribute with live progress. handler is called
	// for every event in order; returning an error from it closes the
	// stream.
	//
	// example:
	//  err := sdk.DistributeStream("", nil, func(ev sdk.Event) error {
	//    fmt.Println(ev.Client, ev.Overall)
	//    return nil
	//  })
	DistributeStream(modelName string, clientIDs []string, handler func(Event) error) error

	// Download writes the updated global model to w.
	//
	// example:
	//  f, _ := os.Create("global_model_updated.cbor")
	//  n, _ := sdk.Download(f)
	Download(w io.Writer) (int64, error)

	// Status returns the deployment status of every client.
	Status() (map[string]ClientStatus, error)

	// TrainClient runs local training for one client.
	//
	// example:
	//  res, _ := sdk.TrainClient("1", 400)
	//  fmt.Println(res.Stdout)
	TrainClient(clientID string, samples uint64) (TrainResult, error)

	// Acknowledge marks the client's deployed model as acknowledged.
	Acknowledge(clientID string) (Acknowledgement, error)

	// RunRound trains every client, aggregates, and optionally
	// distributes the result.
	//
	// example:
	//  r, _ := sdk.RunRound(400, true)
	//  fmt.Println(r.State)
	RunRound(samples uint64, distribute bool) (Round, error)

	// History lists completed rounds.
	History() (History, error)
}

type flSDK struct {
	coordinatorURL string
	client         *http.Client
}

type Config struct {
	CoordinatorURL  string
	TLSVerification bool
}

func NewSDK(cfg Config) SDK {
	return &flSDK{
		coordinatorURL: strings.TrimSuffix(cfg.CoordinatorURL, "/"),
		client: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: !cfg.TLSVerification,
				},
			},
		},
	}
}

func (sdk *flSDK) processRequest(method, reqURL string, data []byte, expectedRespCode int) ([]byte, error) {
	req, err := http.NewRequest(method, reqURL, bytes.NewReader(data))
	if err != nil {
		return []byte{}, err
	}

	req.Header.Add("Content-Type", CTJSON)

	resp, err := sdk.client.Do(req)
	if err != nil {
		return []byte{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return []byte{}, err
	}

	if resp.StatusCode != expectedRespCode {
		return []byte{}, responseError(resp.StatusCode, body)
	}

	return body, nil
}

func (sdk *flSDK) getJSON(method, reqURL string, expectedRespCode int, v any) error {
	body, err := sdk.processRequest(method, reqURL, nil, expectedRespCode)
	if err != nil {
		return err
	}

	return json.Unmarshal(body, v)
}

func responseError(code int, body []byte) error {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return fmt.Errorf("%w: %d: %s", ErrUnexpectedResponse, code, e.Error)
	}

	return fmt.Errorf("%w: %d", ErrUnexpectedResponse, code)
}

func withQuery(endpoint string, query url.Values) string {
	if len(query) == 0 {
		return endpoint
	}

	return endpoint + "?" + query.Encode()
}
