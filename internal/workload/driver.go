// Copyright 2025 vArmor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package workload drives the target service through representative
// interactions while it is being traced.
package workload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"

	synthtypes "github.com/bytedance/seccompsynth/pkg/types"
)

// Driver sends the interactions to the service in order. Failed interactions
// are reported and never stop the sequence.
type Driver struct {
	endpoint           string
	interactions       []Interaction
	readinessTimeout   time.Duration
	interactionTimeout time.Duration
	client             *http.Client
	dialer             *websocket.Dialer
	log                logr.Logger
}

func NewDriver(endpoint string, interactions []Interaction, readinessTimeout, interactionTimeout time.Duration, log logr.Logger) *Driver {
	d := Driver{
		endpoint:           endpoint,
		interactions:       make([]Interaction, 0, len(interactions)),
		readinessTimeout:   readinessTimeout,
		interactionTimeout: interactionTimeout,
		client: &http.Client{
			Timeout: interactionTimeout,
		},
		dialer: &websocket.Dialer{
			HandshakeTimeout: interactionTimeout,
		},
		log: log,
	}

	for _, interaction := range interactions {
		interaction.setDefaults()
		d.interactions = append(d.interactions, interaction)
	}

	return &d
}

// Run waits for the service to accept connections, then sends every
// interaction. It returns early with the remaining interactions marked as
// not attempted when ctx is done.
func (d *Driver) Run(ctx context.Context) *Report {
	report := Report{
		Results: make([]synthtypes.InteractionResult, 0, len(d.interactions)),
	}

	err := d.waitForReadiness(ctx)
	if err != nil {
		d.log.Error(err, "the service is not ready, skip the workload", "endpoint", d.endpoint)
		report.ReadinessError = err.Error()
		for _, interaction := range d.interactions {
			report.Results = append(report.Results, synthtypes.InteractionResult{
				Name:  interaction.Name,
				Kind:  interaction.Kind,
				Error: fmt.Sprintf("not attempted: %v", err),
			})
		}
		return &report
	}
	report.Ready = true

	for _, interaction := range d.interactions {
		result := synthtypes.InteractionResult{
			Name: interaction.Name,
			Kind: interaction.Kind,
		}

		if ctx.Err() != nil {
			result.Error = fmt.Sprintf("not attempted: %v", ctx.Err())
			report.Results = append(report.Results, result)
			continue
		}

		result.Attempted = true
		start := time.Now()
		switch interaction.Kind {
		case synthtypes.WebsocketInteraction:
			err = d.runWebsocket(ctx, &interaction)
		default:
			result.StatusCode, err = d.runHTTP(ctx, &interaction)
		}
		result.Duration = time.Since(start)

		if err != nil {
			result.Error = err.Error()
			d.log.Info("WARNING: the interaction failed, the result will be partial", "interaction", interaction.Name, "error", err.Error())
		} else {
			result.Succeeded = true
			d.log.V(1).Info("interaction succeeded", "interaction", interaction.Name, "duration", result.Duration)
		}
		report.Results = append(report.Results, result)
	}

	return &report
}

func (d *Driver) waitForReadiness(ctx context.Context) error {
	dialer := net.Dialer{Timeout: time.Second}

	probe := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		conn, err := dialer.DialContext(ctx, "tcp", d.endpoint)
		if err != nil {
			d.log.V(2).Info("the service is not ready yet", "endpoint", d.endpoint, "error", err.Error())
			return err
		}
		conn.Close()
		return nil
	}

	exbackoff := &backoff.ExponentialBackOff{
		InitialInterval:     100 * time.Millisecond,
		RandomizationFactor: 0.5,
		Multiplier:          1.5,
		MaxInterval:         2 * time.Second,
		MaxElapsedTime:      d.readinessTimeout,
		Clock:               backoff.SystemClock,
	}
	exbackoff.Reset()

	err := backoff.Retry(probe, exbackoff)
	if err != nil {
		return fmt.Errorf("the service at %s is unreachable: %v", d.endpoint, err)
	}
	d.log.Info("the service is ready", "endpoint", d.endpoint)
	return nil
}

func (d *Driver) runHTTP(ctx context.Context, interaction *Interaction) (int, error) {
	var body io.Reader
	contentType := ""

	switch {
	case len(interaction.Form) > 0:
		form := url.Values{}
		for k, v := range interaction.Form {
			form.Set(k, v)
		}
		body = strings.NewReader(form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case len(interaction.JSON) > 0:
		data, err := json.Marshal(interaction.JSON)
		if err != nil {
			return 0, &synthtypes.WorkloadInteractionError{Interaction: interaction.Name, Err: err}
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, interaction.Method, "http://"+d.endpoint+interaction.Path, body)
	if err != nil {
		return 0, &synthtypes.WorkloadInteractionError{Interaction: interaction.Name, Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range interaction.Headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, &synthtypes.WorkloadInteractionError{Interaction: interaction.Name, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != interaction.ExpectStatus {
		return resp.StatusCode, &synthtypes.WorkloadInteractionError{Interaction: interaction.Name, StatusCode: resp.StatusCode}
	}
	return resp.StatusCode, nil
}

func (d *Driver) runWebsocket(ctx context.Context, interaction *Interaction) error {
	u := "ws://" + d.endpoint + interaction.Path

	conn, resp, err := d.dialer.DialContext(ctx, u, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return &synthtypes.WorkloadInteractionError{Interaction: interaction.Name, StatusCode: status, Err: err}
	}
	defer conn.Close()

	deadline := time.Now().Add(d.interactionTimeout)
	conn.SetWriteDeadline(deadline)
	conn.SetReadDeadline(deadline)

	for _, frame := range interaction.Send {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			return &synthtypes.WorkloadInteractionError{Interaction: interaction.Name, Err: fmt.Errorf("WriteMessage() failed: %v", err)}
		}
	}

	for i := 0; i < interaction.Receive; i++ {
		if _, _, err := conn.ReadMessage(); err != nil {
			return &synthtypes.WorkloadInteractionError{Interaction: interaction.Name, Err: fmt.Errorf("ReadMessage() failed after %d frames: %v", i, err)}
		}
	}

	conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return nil
}
