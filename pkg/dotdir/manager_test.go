package dotdir_test

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sumika-ai/sumika/pkg/dotdir"
)

func TestDotdir(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Dotdir Suite")
}

var _ = Describe("dotdir", func() {
	var tmpDir string
	var m *dotdir.Manager

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "dotdir-test-*")
		Expect(err).NotTo(HaveOccurred())

		// Resolve symlinks so paths match filepath.Abs results
		// (e.g. on macOS /var -> /private/var).
		tmpDir, err = filepath.EvalSymlinks(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		m = dotdir.NewManager()
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("Target", func() {
		It("creates the directory if it doesn't exist", func() {
			dir := filepath.Join(tmpDir, "newdir")
			result, err := m.Target(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(dir))

			info, err := os.Stat(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.IsDir()).To(BeTrue())
		})

		It("returns existing directory without error", func() {
			result, err := m.Target(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(tmpDir))
		})

		It("returns the override dir even when a local .sumika dir exists", func() {
			localDir := filepath.Join(tmpDir, ".sumika")
			Expect(os.Mkdir(localDir, 0o755)).To(Succeed())

			origDir, err := os.Getwd()
			Expect(err).NotTo(HaveOccurred())
			Expect(os.Chdir(tmpDir)).To(Succeed())
			DeferCleanup(func() { os.Chdir(origDir) })

			overrideDir := filepath.Join(tmpDir, "override")
			result, err := m.Target(overrideDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(overrideDir))
		})
	})

	Describe("SessionState", func() {
		It("returns nil when no session state exists", func() {
			state, err := m.LoadSessionState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(BeNil())
		})

		It("round-trips session state", func() {
			saved := &dotdir.SessionState{
				Namespace: "minato",
				Messages: []dotdir.SessionMessage{
					{Role: "human", Content: "Is there a supermarket nearby?"},
					{Role: "ai", Content: "Yes, within a five minute walk."},
				},
			}
			Expect(m.SaveSessionState(saved, tmpDir)).To(Succeed())

			loaded, err := m.LoadSessionState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).NotTo(BeNil())
			Expect(loaded.Namespace).To(Equal("minato"))
			Expect(loaded.Messages).To(HaveLen(2))
			Expect(loaded.Messages[0].Role).To(Equal("human"))
		})

		It("rejects nil session state", func() {
			Expect(m.SaveSessionState(nil, tmpDir)).NotTo(Succeed())
		})

		It("clears session state", func() {
			saved := &dotdir.SessionState{Messages: []dotdir.SessionMessage{{Role: "human", Content: "hi"}}}
			Expect(m.SaveSessionState(saved, tmpDir)).To(Succeed())
			Expect(m.ClearSessionState(tmpDir)).To(Succeed())

			state, err := m.LoadSessionState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(BeNil())
		})

		It("clear is a no-op when nothing is persisted", func() {
			Expect(m.ClearSessionState(tmpDir)).To(Succeed())
		})
	})
})
