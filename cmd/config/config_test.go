package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"

	"cardanogo/internal/testutil"
)

func TestLoadConfigDefault(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(".."); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("")
	if AppConfig.Network.ProtocolMagic != 764824073 {
		t.Fatalf("unexpected protocol magic: %d", AppConfig.Network.ProtocolMagic)
	}
	if AppConfig.Network.EpochSlots != 21600 {
		t.Fatalf("unexpected epoch slots: %d", AppConfig.Network.EpochSlots)
	}
}

func TestLoadConfigOverride(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(".."); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("bootstrap")
	if len(AppConfig.Peers) != 2 {
		t.Fatalf("expected 2 peers from bootstrap override, got %d", len(AppConfig.Peers))
	}
	if AppConfig.Network.DiscoveryTag != "cardanogo-bootstrap" {
		t.Fatalf("expected discovery tag override, got %s", AppConfig.Network.DiscoveryTag)
	}
}

func TestLoadConfigSandbox(t *testing.T) {
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox failed: %v", err)
	}
	defer sb.Cleanup()

	if err := os.Mkdir(sb.Path("config"), 0700); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	data := []byte("network:\n  protocol_magic: 1\n  epoch_slots: 10\nstorage:\n  root: sandbox-data\n")
	if err := sb.WriteFile("config/default.yaml", data, 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(sb.Root); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("")

	if AppConfig.Network.ProtocolMagic != 1 {
		t.Fatalf("expected protocol magic 1, got %d", AppConfig.Network.ProtocolMagic)
	}
	if AppConfig.Storage.Root != "sandbox-data" {
		t.Fatalf("expected storage root sandbox-data, got %s", AppConfig.Storage.Root)
	}
}
