package sandbox

// harnessSource is the Python shim that runs submitted code inside the
// interpreter subprocess. It speaks a JSON-lines protocol on the real
// stdout/stdin of the process:
//
//	harness -> host: {"event":"output","text":...}
//	harness -> host: {"event":"input_request","prompt":...}
//	host -> harness: one raw line per input_request
//	harness -> host: {"event":"trace","text":...}  on a runtime fault
//	harness -> host: {"event":"done"}              always, last
//
// The submitted program gets its own print/input handles injected into its
// globals; shared builtins are never patched, so nothing leaks between runs.
const harnessSource = `import json
import sys
import traceback

_out = sys.stdout


def _send(msg):
    _out.write(json.dumps(msg) + "\n")
    _out.flush()


class _OutputStream:
    def write(self, text):
        if text:
            _send({"event": "output", "text": str(text)})
        return len(text)

    def flush(self):
        pass


def _print(*args, sep=" ", end="\n", **kwargs):
    _send({"event": "output", "text": sep.join(str(a) for a in args) + end})


def _input(prompt=""):
    _send({"event": "input_request", "prompt": str(prompt)})
    line = sys.stdin.readline()
    if line == "":
        raise EOFError("EOF when reading a line")
    return line.rstrip("\n")


def _main():
    with open(sys.argv[1], "r") as f:
        source = f.read()
    sys.stdout = _OutputStream()
    sys.stderr = _OutputStream()
    env = {"__name__": "__main__", "print": _print, "input": _input}
    try:
        exec(compile(source, "main.py", "exec"), env)
    except BaseException:
        etype, value, tb = sys.exc_info()
        if tb is not None:
            tb = tb.tb_next  # drop this frame so the trace starts in main.py
        text = "".join(traceback.format_exception(etype, value, tb))
        _send({"event": "trace", "text": text})
    finally:
        _send({"event": "done"})


_main()
`
