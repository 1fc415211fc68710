package mcpserver

import (
	"encoding/json"
	"strings"
)

const (
	manifestSchema = "https://static.modelcontextprotocol.io/schemas/2025-10-17/server.schema.json"
	registryName   = "io.github.panbanda/ilscan"
	sourceURL      = "https://github.com/panbanda/ilscan"
	imageRepo      = "ghcr.io/panbanda/ilscan"
)

// Manifest is the registry entry (server.json) publishing the snapshot
// tools as a container image that speaks MCP on stdio.
type Manifest struct {
	Schema      string      `json:"$schema"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Version     string      `json:"version"`
	Repository  *Repository `json:"repository,omitempty"`
	Packages    []Package   `json:"packages,omitempty"`
}

type Repository struct {
	URL    string `json:"url"`
	Source string `json:"source"`
}

// Package is one way to start the server: an image, the arguments
// appended to its entrypoint and the transport it then serves.
type Package struct {
	RegistryType     string     `json:"registryType"`
	Identifier       string     `json:"identifier"`
	PackageArguments []Argument `json:"packageArguments,omitempty"`
	Transport        Transport  `json:"transport"`
}

type Argument struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
}

type Transport struct {
	Type string `json:"type"`
}

// manifestVersion converts a build version to the bare semver the
// registry accepts. Tags lose their "v"; dev builds publish 0.0.0.
func manifestVersion(v string) string {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if v == "" || v == "dev" {
		return "0.0.0"
	}
	return v
}

// GenerateManifest renders server.json for a build version.
func GenerateManifest(version string) ([]byte, error) {
	v := manifestVersion(version)
	return json.MarshalIndent(Manifest{
		Schema:      manifestSchema,
		Name:        registryName,
		Description: "Dead code rules, reachability, call graphs and capability facts for .NET metadata snapshots",
		Version:     v,
		Repository:  &Repository{URL: sourceURL, Source: "github"},
		Packages: []Package{{
			RegistryType:     "oci",
			Identifier:       imageRepo + ":" + v,
			PackageArguments: []Argument{{Type: "positional", Value: "mcp"}},
			Transport:        Transport{Type: "stdio"},
		}},
	}, "", "  ")
}
