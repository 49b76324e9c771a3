package initcmder_test

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	initcmder "github.com/papercomputeco/recall/cmd/recall/init"
	"github.com/papercomputeco/recall/pkg/config"
)

var _ = Describe("NewInitCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Use).To(Equal("init"))
	})

	It("rejects any arguments", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Args(cmd, []string{})).To(Succeed())
		Expect(cmd.Args(cmd, []string{"extra"})).NotTo(Succeed())
	})

	It("has a --preset flag", func() {
		cmd := initcmder.NewInitCmd()
		f := cmd.Flags().Lookup("preset")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal(""))
	})
})

var _ = Describe("Init command execution", func() {
	var (
		tmpDir  string
		origDir string
		out     *bytes.Buffer
	)

	run := func(args ...string) error {
		cmd := initcmder.NewInitCmd()
		cmd.SetOut(out)
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "recall-init-test-*")
		Expect(err).NotTo(HaveOccurred())

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())

		out = &bytes.Buffer{}
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	It("creates a .recall directory with a default config.toml", func() {
		Expect(run()).To(Succeed())

		info, err := os.Stat(filepath.Join(tmpDir, ".recall"))
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())

		cfg := loadConfig(tmpDir)
		Expect(cfg.Version).To(Equal(config.CurrentV))
		Expect(cfg.Embedding.Provider).To(Equal("ollama"))
		Expect(cfg.Embedding.Model).To(Equal("nomic-embed-text"))
		Expect(cfg.Storage.Provider).To(Equal("sqlite"))
		Expect(out.String()).To(ContainSubstring("Initialized .recall directory"))
	})

	It("leaves an existing config.toml untouched without --preset", func() {
		dir := filepath.Join(tmpDir, ".recall")
		Expect(os.MkdirAll(dir, 0o755)).To(Succeed())
		original := []byte("[memory]\ndefault_k = 3\n")
		Expect(os.WriteFile(filepath.Join(dir, "config.toml"), original, 0o600)).To(Succeed())

		Expect(run()).To(Succeed())

		data, err := os.ReadFile(filepath.Join(dir, "config.toml"))
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal(original))
		Expect(out.String()).To(ContainSubstring("Already initialized"))
	})

	It("keeps other files in an existing directory", func() {
		dir := filepath.Join(tmpDir, ".recall")
		Expect(os.MkdirAll(dir, 0o755)).To(Succeed())
		testFile := filepath.Join(dir, "index.rclx")
		Expect(os.WriteFile(testFile, []byte("data"), 0o644)).To(Succeed())

		Expect(run("--preset", "offline")).To(Succeed())

		data, err := os.ReadFile(testFile)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("data"))
	})

	Describe("--preset with provider presets", func() {
		It("writes the openai preset", func() {
			Expect(run("--preset", "openai")).To(Succeed())

			cfg := loadConfig(tmpDir)
			Expect(cfg.Embedding.Provider).To(Equal("openai"))
			Expect(cfg.Embedding.Model).To(Equal("text-embedding-3-small"))
			Expect(cfg.Embedding.Dimensions).To(Equal(uint(1536)))
		})

		It("writes the offline preset", func() {
			Expect(run("--preset", "offline")).To(Succeed())

			cfg := loadConfig(tmpDir)
			Expect(cfg.Embedding.Provider).To(Equal("hashing"))
			Expect(cfg.Embedding.Dimensions).To(Equal(uint(384)))
		})

		It("overwrites the config when re-run with a different preset", func() {
			Expect(run("--preset", "openai")).To(Succeed())
			Expect(run("--preset", "offline")).To(Succeed())

			Expect(loadConfig(tmpDir).Embedding.Provider).To(Equal("hashing"))
		})

		It("rejects unknown preset names without creating the directory", func() {
			err := run("--preset", "invalid-provider")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unknown preset"))

			_, statErr := os.Stat(filepath.Join(tmpDir, ".recall"))
			Expect(os.IsNotExist(statErr)).To(BeTrue())
		})
	})

	Describe("--preset with remote URL", func() {
		It("fetches and writes a remote config.toml", func() {
			remoteCfg := `version = 0

[embedding]
provider = "openai"
model = "text-embedding-3-large"
dimensions = 3072

[memory]
min_relevance = 0.5
`
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, remoteCfg)
			}))
			defer server.Close()

			Expect(run("--preset", server.URL)).To(Succeed())

			cfg := loadConfig(tmpDir)
			Expect(cfg.Embedding.Model).To(Equal("text-embedding-3-large"))
			Expect(cfg.Embedding.Dimensions).To(Equal(uint(3072)))
			Expect(cfg.Memory.MinRelevance).To(Equal(0.5))
		})

		It("returns an error for a non-200 response", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			}))
			defer server.Close()

			err := run("--preset", server.URL)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("HTTP 404"))
		})

		It("returns an error for invalid TOML", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, "this is not valid toml [[[")
			}))
			defer server.Close()

			err := run("--preset", server.URL)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("parsing"))
		})

		It("returns an error for an unreachable URL", func() {
			err := run("--preset", "http://127.0.0.1:1")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("fetching remote config"))
		})
	})
})

func loadConfig(baseDir string) *config.Config {
	data, err := os.ReadFile(filepath.Join(baseDir, ".recall", "config.toml"))
	ExpectWithOffset(1, err).NotTo(HaveOccurred())

	cfg := &config.Config{}
	ExpectWithOffset(1, toml.Unmarshal(data, cfg)).To(Succeed())
	return cfg
}
