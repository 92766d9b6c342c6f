package dotdir_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/agentconsole/pkg/dotdir"
)

// isolate moves into an empty working directory with an empty HOME.
func isolate(tmpDir string) string {
	emptyDir := filepath.Join(tmpDir, "empty")
	Expect(os.MkdirAll(emptyDir, 0o755)).To(Succeed())

	origDir, err := os.Getwd()
	Expect(err).NotTo(HaveOccurred())
	Expect(os.Chdir(emptyDir)).To(Succeed())
	DeferCleanup(func() { os.Chdir(origDir) })

	origHome := os.Getenv("HOME")
	Expect(os.Setenv("HOME", emptyDir)).To(Succeed())
	DeferCleanup(func() { os.Setenv("HOME", origHome) })

	return emptyDir
}

var _ = Describe("Manager", func() {
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
		It("creates the override directory if it doesn't exist", func() {
			dir := filepath.Join(tmpDir, "newdir")
			result, err := m.Target(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(dir))

			info, err := os.Stat(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.IsDir()).To(BeTrue())
		})

		It("prefers the override over a local directory", func() {
			work := isolate(tmpDir)
			Expect(os.Mkdir(filepath.Join(work, dotdir.DirName), 0o755)).To(Succeed())

			override := filepath.Join(tmpDir, "override")
			result, err := m.Target(override)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(override))
		})

		It("returns the local directory when it exists", func() {
			work := isolate(tmpDir)
			local := filepath.Join(work, dotdir.DirName)
			Expect(os.Mkdir(local, 0o755)).To(Succeed())

			result, err := m.Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(local))
		})

		It("returns empty when no directory exists", func() {
			isolate(tmpDir)

			result, err := m.Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(BeEmpty())
		})
	})

	Describe("Ensure", func() {
		It("creates the home directory when nothing else applies", func() {
			home := isolate(tmpDir)

			result, err := m.Ensure("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(filepath.Join(home, dotdir.DirName)))
			Expect(filepath.Join(home, dotdir.DirName)).To(BeADirectory())
		})
	})
})
