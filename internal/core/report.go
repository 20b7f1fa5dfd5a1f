package core

import (
	"fmt"
	"io"

	"github.com/cloudfs/mountfs/internal/provider"
)

const usageText = "Usage:\r\n" +
	"storage <cmd> <path> <args>\r\n" +
	"The path must start with /int or /ext\r\n" +
	"Cmd list:\r\n" +
	"\tinfo\t - get FS info\r\n" +
	"\tformat\t - format filesystem\r\n" +
	"\tlist\t - list files and dirs\r\n" +
	"\ttree\t - list files and dirs, recursive\r\n" +
	"\tremove\t - delete the file or directory\r\n" +
	"\tread\t - read text from file and print file size and content to cli\r\n" +
	"\tread_chunks\t - read data from file and print file size and content to cli, <args> should contain how many bytes you want to read in block\r\n" +
	"\twrite\t - read text from cli and append it to file, stops by ctrl+c\r\n" +
	"\twrite_chunk\t - read data from cli and append it to file, <args> should contain how many bytes you want to write\r\n" +
	"\tcopy\t - copy file to new file, <args> must contain new path\r\n" +
	"\trename\t - move file to new file, <args> must contain new path\r\n" +
	"\tmigrate\t - move folder to new path, renaming already present files by adding numbers to the end\r\n" +
	"\tmkdir\t - creates a new directory\r\n" +
	"\tmd5\t - md5 hash of the file\r\n" +
	"\tstat\t - info about file or dir\r\n" +
	"\ttimestamp\t - last modification timestamp\r\n"

// reporter renders command output as CRLF-terminated lines.
type reporter struct {
	w io.Writer
}

// line prints one formatted line followed by CRLF.
func (r reporter) line(format string, args ...interface{}) {
	fmt.Fprintf(r.w, format+"\r\n", args...)
}

// raw writes bytes as they are, used to echo file and input data.
func (r reporter) raw(p []byte) {
	_, _ = r.w.Write(p)
}

func (r reporter) usage() {
	fmt.Fprint(r.w, usageText)
}

// storageError prints a backend error the way every command reports it.
func (r reporter) storageError(err error) {
	r.line("Storage error: %s", provider.Describe(err))
}
