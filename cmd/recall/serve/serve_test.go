package servecmder_test

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	servecmder "github.com/papercomputeco/recall/cmd/recall/serve"
)

var _ = Describe("NewServeCmd", func() {
	It("takes no arguments", func() {
		cmd := servecmder.NewServeCmd()
		Expect(cmd.Use).To(Equal("serve"))
		Expect(cmd.Args(cmd, []string{"extra"})).NotTo(Succeed())
	})

	It("registers server and memory flags", func() {
		cmd := servecmder.NewServeCmd()

		listen := cmd.Flags().Lookup("listen")
		Expect(listen).NotTo(BeNil())
		Expect(listen.Shorthand).To(Equal("l"))
		Expect(listen.DefValue).To(Equal(":8081"))

		for _, name := range []string{"kafka-brokers", "workers", "queue-size", "embedding-provider", "vector-store-provider", "storage-provider"} {
			Expect(cmd.Flags().Lookup(name)).NotTo(BeNil(), name)
		}
		Expect(cmd.Flags().Lookup("workers").DefValue).To(Equal("1"))
	})

	It("fails before starting when the config is invalid", func() {
		cmd := servecmder.NewServeCmd()
		cmd.PersistentFlags().Bool("debug", false, "")
		cmd.PersistentFlags().String("config-dir", "", "")
		GinkgoT().Setenv("RECALL_CACHE_TTL", "forever")
		cmd.SetArgs([]string{"--config-dir", GinkgoT().TempDir()})

		err := cmd.Execute()
		Expect(err).To(MatchError(ContainSubstring("cache.ttl")))
	})

	It("fails at startup for an unknown storage provider", func() {
		cmd := servecmder.NewServeCmd()
		cmd.PersistentFlags().Bool("debug", false, "")
		cmd.PersistentFlags().String("config-dir", "", "")
		cmd.SetArgs([]string{"--config-dir", GinkgoT().TempDir(), "--storage-provider", "tape"})

		err := cmd.Execute()
		Expect(err).To(HaveOccurred())
	})

	It("opens the log file before building the stack", func() {
		dir := GinkgoT().TempDir()
		logPath := filepath.Join(dir, "serve.log")

		cmd := servecmder.NewServeCmd()
		cmd.PersistentFlags().Bool("debug", false, "")
		cmd.PersistentFlags().String("config-dir", "", "")
		cmd.SetArgs([]string{"--config-dir", dir, "--storage-provider", "tape", "--log-file", logPath})

		Expect(cmd.Execute()).NotTo(Succeed())
		Expect(logPath).To(BeAnExistingFile())
	})

	It("reports an unwritable log file", func() {
		cmd := servecmder.NewServeCmd()
		cmd.PersistentFlags().Bool("debug", false, "")
		cmd.PersistentFlags().String("config-dir", "", "")
		cmd.SetArgs([]string{
			"--config-dir", GinkgoT().TempDir(),
			"--log-file", filepath.Join(GinkgoT().TempDir(), "missing", "serve.log"),
		})

		Expect(cmd.Execute()).To(MatchError(ContainSubstring("opening log file")))
	})
})
