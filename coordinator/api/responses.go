package api

import (
	"net/http"

	"github.com/absmach/flcoord/coordinator"
	"github.com/absmach/flcoord/pkg/distributor"
	"github.com/absmach/flcoord/pkg/round"
	"github.com/absmach/flcoord/pkg/status"
	"github.com/absmach/supermq"
)

var (
	_ supermq.Response = (*artifactRes)(nil)
	_ supermq.Response = (*trainRes)(nil)
	_ supermq.Response = (*ackRes)(nil)
	_ supermq.Response = (*statusRes)(nil)
	_ supermq.Response = (*distributeRes)(nil)
	_ supermq.Response = (*roundRes)(nil)
	_ supermq.Response = (*historyRes)(nil)
	_ supermq.Response = (*modelStatusRes)(nil)
)

type artifactRes struct {
	coordinator.ArtifactInfo
	created bool
}

func (a artifactRes) Code() int {
	if a.created {
		return http.StatusCreated
	}

	return http.StatusOK
}

func (a artifactRes) Headers() map[string]string {
	return map[string]string{}
}

func (a artifactRes) Empty() bool {
	return false
}

type trainRes struct {
	ClientID string `json:"client_id"`
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	Duration string `json:"duration"`
}

func (t trainRes) Code() int {
	return http.StatusOK
}

func (t trainRes) Headers() map[string]string {
	return map[string]string{}
}

func (t trainRes) Empty() bool {
	return false
}

type ackRes struct {
	Client string `json:"client"`
	status.ClientRecord
}

func (a ackRes) Code() int {
	return http.StatusOK
}

func (a ackRes) Headers() map[string]string {
	return map[string]string{}
}

func (a ackRes) Empty() bool {
	return false
}

type statusRes status.Table

func (s statusRes) Code() int {
	return http.StatusOK
}

func (s statusRes) Headers() map[string]string {
	return map[string]string{}
}

func (s statusRes) Empty() bool {
	return false
}

// distributeRes is keyed by client id.
type distributeRes map[string]distributor.Outcome

func (d distributeRes) Code() int {
	return http.StatusOK
}

func (d distributeRes) Headers() map[string]string {
	return map[string]string{}
}

func (d distributeRes) Empty() bool {
	return false
}

type roundRes struct {
	coordinator.RoundResult
}

func (r roundRes) Code() int {
	return http.StatusOK
}

func (r roundRes) Headers() map[string]string {
	return map[string]string{}
}

func (r roundRes) Empty() bool {
	return false
}

type historyRes struct {
	Rounds      []round.Record `json:"rounds"`
	TotalRounds int            `json:"totalRounds"`
}

func (h historyRes) Code() int {
	return http.StatusOK
}

func (h historyRes) Headers() map[string]string {
	return map[string]string{}
}

func (h historyRes) Empty() bool {
	return false
}

type modelStatusRes struct {
	coordinator.ModelStatus
}

func (m modelStatusRes) Code() int {
	return http.StatusOK
}

func (m modelStatusRes) Headers() map[string]string {
	return map[string]string{}
}

func (m modelStatusRes) Empty() bool {
	return false
}

// downloadRes is written by encodeDownloadResponse, not EncodeResponse.
type downloadRes struct {
	coordinator.Artifact
}
