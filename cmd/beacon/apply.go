package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cuemby/beacon/pkg/client"
	"github.com/cuemby/beacon/pkg/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a configuration file",
	Long: `Apply Beacon resources from a YAML file. The file may hold several
documents separated by ---.

Examples:
  # Publish alert definitions (owner only)
  beacon apply -f alerts.yaml --sender <owner>

  # alerts.yaml
  kind: Alert
  spec:
    blockchain: ethereum
    protocol: uniswap
    method: swap
    name: Large swap
    fields:
      - key: min_amount
        name: Minimum amount
  ---
  kind: Subscription
  spec:
    alertKey: ethereum.uniswap.swap
    fieldValues:
      - key: min_amount
        value: "1000"`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML file to apply (required)")
	_ = applyCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(applyCmd)
}

// Resource represents a generic Beacon resource document
type Resource struct {
	APIVersion string           `yaml:"apiVersion"`
	Kind       string           `yaml:"kind"`
	Metadata   ResourceMetadata `yaml:"metadata"`
	Spec       yaml.Node        `yaml:"spec"`
}

type ResourceMetadata struct {
	Name string `yaml:"name"`
}

// decodeResources reads every document in r
func decodeResources(r io.Reader) ([]*Resource, error) {
	dec := yaml.NewDecoder(r)

	var resources []*Resource
	for {
		var res Resource
		err := dec.Decode(&res)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %v", err)
		}
		if res.Kind == "" {
			return nil, fmt.Errorf("document %d: kind is required", len(resources)+1)
		}
		resources = append(resources, &res)
	}
	return resources, nil
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")

	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %v", err)
	}
	defer f.Close()

	resources, err := decodeResources(f)
	if err != nil {
		return err
	}

	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	out := cmd.OutOrStdout()
	for _, res := range resources {
		switch res.Kind {
		case "Alert":
			err = applyAlert(c, out, res)
		case "Subscription":
			err = applySubscription(c, out, res)
		default:
			err = fmt.Errorf("unsupported resource kind: %s", res.Kind)
		}
		if err != nil {
			return err
		}
	}

	return nil
}

func applyAlert(c *client.Client, out io.Writer, res *Resource) error {
	var req types.CreateAlertRequest
	if err := res.Spec.Decode(&req); err != nil {
		return fmt.Errorf("invalid alert spec: %v", err)
	}
	if req.Name == "" {
		req.Name = res.Metadata.Name
	}

	alert, err := c.CreateAlert(&req)
	if err != nil {
		return fmt.Errorf("failed to apply alert %s.%s.%s: %v", req.Blockchain, req.Protocol, req.Method, err)
	}

	fmt.Fprintf(out, "✓ Alert applied: %s\n", alert.Key)
	return nil
}

func applySubscription(c *client.Client, out io.Writer, res *Resource) error {
	var req types.SubscribeAlertRequest
	if err := res.Spec.Decode(&req); err != nil {
		return fmt.Errorf("invalid subscription spec: %v", err)
	}

	sub, err := c.SubscribeAlert(&req)
	if err != nil {
		return fmt.Errorf("failed to apply subscription to %s: %v", req.AlertKey, err)
	}

	fmt.Fprintf(out, "✓ Subscription applied: %s\n", sub.AlertKey)
	return nil
}
