package k8s

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/u2takey/go-utils/filesystem/homedir"
	"go.uber.org/zap"
	batchv1 "k8s.io/api/batch/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// FieldManager identifies kubespresso's writes in managedFields.
const FieldManager = "kubespresso"

// JobsGVR is the resource watched by default.
var JobsGVR = batchv1.SchemeGroupVersion.WithResource("jobs")

// Login returns the in-cluster config when running inside a Pod and falls
// back to the local kubeconfig otherwise.
func Login(logger *zap.Logger) (*rest.Config, error) {
	if os.Getenv("KUBERNETES_PORT") != "" {
		logger.Debug("Running inside of a cluster")
		cfg, err := rest.InClusterConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load in-cluster config: %w", err)
		}
		return cfg, nil
	}

	kubeconfig := KubeconfigPath()
	logger.Debug("Running outside of a cluster", zap.String("kubeconfig", kubeconfig))
	cfg, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to build config: %w", err)
	}
	return cfg, nil
}

// KubeconfigPath prefers the first entry of $KUBECONFIG, then ~/.kube/config.
func KubeconfigPath() string {
	for _, p := range filepath.SplitList(os.Getenv("KUBECONFIG")) {
		if p != "" {
			return p
		}
	}
	if home := homedir.HomeDir(); home != "" {
		return filepath.Join(home, ".kube", "config")
	}
	return ""
}

type Clients struct {
	Dynamic dynamic.Interface
	Typed   kubernetes.Interface
}

func NewClients(cfg *rest.Config) (*Clients, error) {
	cfg = rest.CopyConfig(cfg)
	cfg.UserAgent = FieldManager

	dyn, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}
	typed, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}
	return &Clients{Dynamic: dyn, Typed: typed}, nil
}

// Ping checks that the API server answers.
func (c *Clients) Ping() error {
	_, err := c.Typed.Discovery().ServerVersion()
	return err
}

// ServerVersion returns the API server's git version, for logging.
func (c *Clients) ServerVersion() (string, error) {
	v, err := c.Typed.Discovery().ServerVersion()
	if err != nil {
		return "", err
	}
	return v.GitVersion, nil
}

// ParseGVR builds a GroupVersionResource from "group/version/resource", or
// "version/resource" for the core group.
func ParseGVR(s string) (schema.GroupVersionResource, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	for _, p := range parts {
		if p == "" {
			return schema.GroupVersionResource{}, fmt.Errorf("invalid resource %q, expected group/version/resource", s)
		}
	}
	switch len(parts) {
	case 3:
		return schema.GroupVersionResource{Group: parts[0], Version: parts[1], Resource: parts[2]}, nil
	case 2:
		return schema.GroupVersionResource{Version: parts[0], Resource: parts[1]}, nil
	default:
		return schema.GroupVersionResource{}, fmt.Errorf("invalid resource %q, expected group/version/resource", s)
	}
}
