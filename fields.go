// Copyright 2025 The Rivaas Authors
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

package logship

import (
	"fmt"
	"net"
	"os"
	"strconv"
)

// Field names a value a sink injects into every record it ships.
type Field string

const (
	FieldHostname Field = "hostname"
	FieldPID      Field = "pid"
	FieldIP       Field = "ip"
	FieldEnv      Field = "env"
	FieldVersion  Field = "version"
	FieldCategory Field = "category"
)

// allFields is the default injection set of the cloud-collector kinds.
var allFields = []Field{FieldHostname, FieldPID, FieldIP, FieldEnv, FieldVersion, FieldCategory}

// Environment variables consulted when the host does not supply the
// environment name or version through options.
const (
	envVarEnvironment = "APP_ENV"
	envVarVersion     = "APP_VERSION"
)

// defaultCategory is used when no category-like metadata key is present.
const defaultCategory = "general"

// categoryKeys are checked in priority order.
var categoryKeys = [...]string{"module", "category", "component"}

func parseField(s string) (Field, error) {
	switch f := Field(s); f {
	case FieldHostname, FieldPID, FieldIP, FieldEnv, FieldVersion, FieldCategory:
		return f, nil
	}
	return "", fmt.Errorf("unknown field %q", s)
}

// hostInfo is resolved once per logger.
type hostInfo struct {
	Hostname    string
	PID         int
	IP          string
	Environment string
	Version     string
}

func resolveHostInfo(env, version string) hostInfo {
	h := hostInfo{
		PID:         os.Getpid(),
		IP:          firstIPv4(),
		Environment: env,
		Version:     version,
	}
	if name, err := os.Hostname(); err == nil {
		h.Hostname = name
	}
	if h.Environment == "" {
		h.Environment = os.Getenv(envVarEnvironment)
	}
	if h.Version == "" {
		h.Version = os.Getenv(envVarVersion)
	}
	return h
}

// firstIPv4 returns the first non-loopback IPv4 address of an up interface.
func firstIPv4() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip4 := ip.To4(); ip4 != nil && !ip4.IsLoopback() {
				return ip4.String()
			}
		}
	}
	return ""
}

// categoryOf infers a coarse category from event metadata.
func categoryOf(meta map[string]any) string {
	for _, k := range categoryKeys {
		if v, ok := meta[k]; ok {
			if s := fmt.Sprint(v); s != "" {
				return s
			}
		}
	}
	return defaultCategory
}

// enricher injects the configured fields into outgoing records.
type enricher struct {
	fields []Field
	host   hostInfo
}

// apply calls set for every enabled field, in configuration order.
func (en enricher) apply(e Event, set func(key, value string)) {
	for _, f := range en.fields {
		switch f {
		case FieldHostname:
			set(string(f), en.host.Hostname)
		case FieldPID:
			set(string(f), strconv.Itoa(en.host.PID))
		case FieldIP:
			set(string(f), en.host.IP)
		case FieldEnv:
			set(string(f), en.host.Environment)
		case FieldVersion:
			set(string(f), en.host.Version)
		case FieldCategory:
			set(string(f), categoryOf(e.Metadata))
		}
	}
}

// metadata returns e's metadata with the enabled fields merged in. Event
// metadata wins over injected values. The input map is not modified.
func (en enricher) metadata(e Event) map[string]any {
	if len(en.fields) == 0 {
		return e.Metadata
	}
	out := make(map[string]any, len(e.Metadata)+len(en.fields))
	en.apply(e, func(k, v string) { out[k] = v })
	for k, v := range e.Metadata {
		out[k] = v
	}
	return out
}
