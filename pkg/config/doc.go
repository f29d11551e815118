/*
Package config loads recoverd's tunables from a YAML file and merges
in command-line overrides, following the same "defaults, then file,
then flags" layering the teacher's apply command uses for its own
gopkg.in/yaml.v3-based manifests. Every duration-shaped tunable in the
monitor loop, the ban bookkeeper, and the recovery engine has a field
here so a cluster operator can tune timing without a rebuild.
*/
package config
