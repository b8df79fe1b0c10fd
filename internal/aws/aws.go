// Package aws loads SDK configuration for the KMS-backed prover identity.
package aws

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

const serviceAccountTokenPath = "/var/run/secrets/kubernetes.io/serviceaccount/token"

// LoadAWSConfig resolves credentials through the default chain. Outside Kubernetes the shared
// profile named by AWS_PROFILE (or "default") is pinned; in a pod the web identity token wins.
func LoadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	var options []func(*config.LoadOptions) error
	if !inKubernetes() {
		options = append(options, config.WithSharedConfigProfile(sharedProfile()))
	}
	if region != "" {
		options = append(options, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return aws.Config{}, err
	}
	if cfg.Region == "" {
		return aws.Config{}, fmt.Errorf("no AWS region configured")
	}
	return cfg, nil
}

// CallerARN returns the ARN the loaded credentials act as.
func CallerARN(ctx context.Context, cfg aws.Config) (string, error) {
	out, err := sts.NewFromConfig(cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.Arn), nil
}

func inKubernetes() bool {
	_, err := os.Stat(serviceAccountTokenPath)
	return err == nil
}

func sharedProfile() string {
	if profile := os.Getenv("AWS_PROFILE"); profile != "" {
		return profile
	}
	return "default"
}
