// Package compose implements the Compose Synthesizer (C6): it builds a
// Compose Specification document from an EffectiveConfig, a detected
// Capabilities set, and a VersionsManifest, then renders it atomically to
// disk.
//
// Grounded on the teacher's paas_compose_resolver.go for the overall idea
// of a typed document assembled from fragments and rendered to a temp file
// before being handed to the compose binary, generalized from that
// file's string/map-based YAML section surgery to a fully typed document
// (via gopkg.in/yaml.v3 struct tags) since this spec's document is
// synthesized from scratch rather than merged from operator-supplied
// fragments.
package compose

// Document is the top-level Compose Specification tree (spec.md's
// ComposeDocument). Field order matches the canonical compose-spec layout
// so rendered output reads the way a human-authored compose.yaml would.
type Document struct {
	Services map[string]Service `yaml:"services"`
	Networks map[string]Network `yaml:"networks,omitempty"`
	Volumes  map[string]Volume  `yaml:"volumes,omitempty"`
	Secrets  map[string]Secret  `yaml:"secrets,omitempty"`
}

type Service struct {
	Image         string            `yaml:"image"`
	ContainerName string            `yaml:"container_name,omitempty"`
	Ports         []string          `yaml:"ports,omitempty"`
	Environment   map[string]string `yaml:"environment,omitempty"`
	Volumes       []string          `yaml:"volumes,omitempty"`
	Networks      []string          `yaml:"networks,omitempty"`
	DependsOn     map[string]DependsOn `yaml:"depends_on,omitempty"`
	Healthcheck   *Healthcheck      `yaml:"healthcheck,omitempty"`
	Deploy        *Deploy           `yaml:"deploy,omitempty"`
	Logging       *Logging          `yaml:"logging,omitempty"`
	Profiles      []string          `yaml:"profiles,omitempty"`
	SecretsAttached []string        `yaml:"secrets,omitempty"`
}

type DependsOn struct {
	Condition string `yaml:"condition"`
}

type Healthcheck struct {
	Test        []string `yaml:"test"`
	Interval    string   `yaml:"interval,omitempty"`
	Timeout     string   `yaml:"timeout,omitempty"`
	Retries     int      `yaml:"retries,omitempty"`
	StartPeriod string   `yaml:"start_period,omitempty"`
}

type Deploy struct {
	Resources DeployResources `yaml:"resources"`
}

type DeployResources struct {
	Limits   *ResourceSpec `yaml:"limits,omitempty"`
	Reservations *ResourceSpec `yaml:"reservations,omitempty"`
}

type ResourceSpec struct {
	CPUs   string `yaml:"cpus,omitempty"`
	Memory string `yaml:"memory,omitempty"`
}

type Logging struct {
	Driver  string            `yaml:"driver"`
	Options map[string]string `yaml:"options,omitempty"`
}

type Network struct {
	Driver   string `yaml:"driver,omitempty"`
	External bool   `yaml:"external,omitempty"`
}

type Volume struct {
	Driver string `yaml:"driver,omitempty"`
}

type Secret struct {
	File string `yaml:"file,omitempty"`
}
