package sdk

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	modelsEndpoint = "/models"

	eventDone = "done"
)

type ArtifactInfo struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

type ModelStatus struct {
	Status  string `json:"status"`
	Initial bool   `json:"global_model_init"`
	Updated bool   `json:"global_model_updated"`
}

type Outcome struct {
	Client string `json:"client"`
	Status string `json:"status"`
	Path   string `json:"path,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Event is one distribution stream message. Name is "done" for the
// terminal event and empty otherwise.
type Event struct {
	Name     string `json:"-"`
	Client   string `json:"client,omitempty"`
	Progress int    `json:"progress,omitempty"`
	Overall  int    `json:"overall,omitempty"`
	Finished bool   `json:"finished,omitempty"`
	Error    string `json:"error,omitempty"`
	Status   string `json:"status,omitempty"`
}

func (e Event) Done() bool {
	return e.Name == eventDone
}

func (sdk *flSDK) InitGlobal() (ArtifactInfo, error) {
	var info ArtifactInfo
	if err := sdk.getJSON(http.MethodPost, sdk.coordinatorURL+modelsEndpoint+"/init", http.StatusCreated, &info); err != nil {
		return ArtifactInfo{}, err
	}

	return info, nil
}

func (sdk *flSDK) Aggregate() (ArtifactInfo, error) {
	var info ArtifactInfo
	if err := sdk.getJSON(http.MethodPost, sdk.coordinatorURL+modelsEndpoint+"/aggregate", http.StatusOK, &info); err != nil {
		return ArtifactInfo{}, err
	}

	return info, nil
}

func (sdk *flSDK) ModelStatus() (ModelStatus, error) {
	var st ModelStatus
	if err := sdk.getJSON(http.MethodGet, sdk.coordinatorURL+modelsEndpoint+"/status", http.StatusOK, &st); err != nil {
		return ModelStatus{}, err
	}

	return st, nil
}

func (sdk *flSDK) Distribute(modelName string, clientIDs []string) (map[string]Outcome, error) {
	reqURL := withQuery(sdk.coordinatorURL+modelsEndpoint+"/distribute", distributeQuery(modelName, clientIDs))

	var outcomes map[string]Outcome
	if err := sdk.getJSON(http.MethodPost, reqURL, http.StatusOK, &outcomes); err != nil {
		return nil, err
	}

	return outcomes, nil
}

func (sdk *flSDK) DistributeStream(modelName string, clientIDs []string, handler func(Event) error) error {
	reqURL := withQuery(sdk.coordinatorURL+modelsEndpoint+"/distribute/stream", distributeQuery(modelName, clientIDs))

	req, err := http.NewRequest(http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := sdk.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		return responseError(resp.StatusCode, body)
	}

	return readEvents(resp.Body, handler)
}

// readEvents decodes a server-sent event stream. Only the event and data
// fields are interpreted.
func readEvents(r io.Reader, handler func(Event) error) error {
	scanner := bufio.NewScanner(r)

	var (
		name string
		data bytes.Buffer
	)
	dispatch := func() error {
		defer func() {
			name = ""
			data.Reset()
		}()
		if data.Len() == 0 {
			return nil
		}
		var ev Event
		if err := json.Unmarshal(data.Bytes(), &ev); err != nil {
			return err
		}
		ev.Name = name

		return handler(ev)
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if err := dispatch(); err != nil {
				return err
			}
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	return dispatch()
}

func (sdk *flSDK) Download(w io.Writer) (int64, error) {
	resp, err := sdk.client.Get(sdk.coordinatorURL + modelsEndpoint + "/download")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return 0, err
		}

		return 0, responseError(resp.StatusCode, body)
	}

	return io.Copy(w, resp.Body)
}

func distributeQuery(modelName string, clientIDs []string) url.Values {
	q := url.Values{}
	if modelName != "" {
		q.Set("model_name", modelName)
	}
	if len(clientIDs) > 0 {
		q.Set("clients", strings.Join(clientIDs, ","))
	}

	return q
}
