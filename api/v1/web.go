package v1

import "net/http"

const webPage = `
<!DOCTYPE html>
<html>
<head>
    <title>File Upload</title>
    <style>
        form {
            margin: 20px;
        }
        .form-group {
            margin-bottom: 10px;
        }
        pre {
            margin: 20px;
        }
    </style>
</head>
<body>
    <form id="uploadForm" onsubmit="uploadFiles(event)">
        <div class="form-group">
            <label for="fileInput">Select files:</label>
            <input type="file" id="fileInput" multiple required>
        </div>
        <div class="form-group">
            <input type="submit" value="Upload">
        </div>
    </form>
    <pre id="result"></pre>

    <script>
    function uploadFiles(event) {
        event.preventDefault();

        const files = document.getElementById('fileInput').files;
        if (files.length === 0) {
            alert('Please select a file first');
            return;
        }

        const data = new FormData();
        let url = '/api/v1/files';
        if (files.length === 1) {
            data.append('file', files[0]);
        } else {
            url = '/api/v1/files/batch';
            for (const f of files) {
                data.append('files', f);
            }
        }

        fetch(url, { method: 'POST', body: data })
        .then(response => response.json().then(body => ({ ok: response.ok, body })))
        .then(({ ok, body }) => {
            document.getElementById('result').textContent = JSON.stringify(body, null, 2);
            if (ok) {
                document.getElementById('uploadForm').reset();
            }
        })
        .catch(error => {
            console.error('Error:', error);
            alert('Upload failed');
        });
    }
    </script>
</body>
</html>`

func Web() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(webPage))
	}
}
