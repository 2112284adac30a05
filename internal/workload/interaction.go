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

package workload

import (
	"fmt"
	"net/http"
	"strings"

	synthtypes "github.com/bytedance/seccompsynth/pkg/types"
)

// Interaction is one representative request sent to the target service.
type Interaction struct {
	Name string                     `yaml:"name"`
	Kind synthtypes.InteractionKind `yaml:"kind"`
	Path string                     `yaml:"path"`

	// HTTP
	Method       string                 `yaml:"method,omitempty"`
	Headers      map[string]string      `yaml:"headers,omitempty"`
	Form         map[string]string      `yaml:"form,omitempty"`
	JSON         map[string]interface{} `yaml:"json,omitempty"`
	ExpectStatus int                    `yaml:"expectStatus,omitempty"`

	// Websocket
	Send    []string `yaml:"send,omitempty"`
	Receive int      `yaml:"receive,omitempty"`
}

// DefaultInteractions exercise every route of the reference service: the
// index page, the form and JSON write endpoints and the Socket.IO channel.
func DefaultInteractions() []Interaction {
	return []Interaction{
		{
			Name:   "index",
			Kind:   synthtypes.HTTPInteraction,
			Method: http.MethodGet,
			Path:   "/",
		},
		{
			Name:   "write-form",
			Kind:   synthtypes.HTTPInteraction,
			Method: http.MethodPost,
			Path:   "/write",
			Form:   map[string]string{"content": "seccompsynth form probe"},
		},
		{
			Name:   "write-api",
			Kind:   synthtypes.HTTPInteraction,
			Method: http.MethodPost,
			Path:   "/api/write",
			JSON:   map[string]interface{}{"text": "seccompsynth api probe"},
		},
		{
			Name:    "socketio",
			Kind:    synthtypes.WebsocketInteraction,
			Path:    "/socket.io/?EIO=4&transport=websocket",
			Send:    []string{"40"},
			Receive: 2,
		},
	}
}

func (i *Interaction) setDefaults() {
	if i.Kind == "" {
		i.Kind = synthtypes.HTTPInteraction
	}
	if i.Path == "" {
		i.Path = "/"
	}
	if i.Kind == synthtypes.HTTPInteraction {
		if i.Method == "" {
			if len(i.Form) > 0 || len(i.JSON) > 0 {
				i.Method = http.MethodPost
			} else {
				i.Method = http.MethodGet
			}
		}
		i.Method = strings.ToUpper(i.Method)
		if i.ExpectStatus == 0 {
			i.ExpectStatus = http.StatusOK
		}
	}
	if i.Name == "" {
		i.Name = fmt.Sprintf("%s %s", i.Kind, i.Path)
	}
}

// Validate reports interactions that can't be sent.
func (i *Interaction) Validate() error {
	switch i.Kind {
	case "", synthtypes.HTTPInteraction:
		if len(i.Form) > 0 && len(i.JSON) > 0 {
			return fmt.Errorf("interaction %q has both a form and a JSON body", i.Name)
		}
		if len(i.Send) > 0 || i.Receive > 0 {
			return fmt.Errorf("interaction %q is an HTTP request with websocket frames", i.Name)
		}
	case synthtypes.WebsocketInteraction:
		if len(i.Form) > 0 || len(i.JSON) > 0 {
			return fmt.Errorf("interaction %q is a websocket with an HTTP body", i.Name)
		}
		if i.Receive < 0 {
			return fmt.Errorf("interaction %q expects a negative number of frames", i.Name)
		}
	default:
		return fmt.Errorf("interaction %q has an unknown kind %q", i.Name, i.Kind)
	}
	if i.Path != "" && !strings.HasPrefix(i.Path, "/") {
		return fmt.Errorf("the path of interaction %q must start with /", i.Name)
	}
	return nil
}
